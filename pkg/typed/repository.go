package typed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/entitydoc/pkg/core"
)

// EntityModel is a typed view of one locale of an entity: every field value
// of that locale decoded into T.
type EntityModel[T any] struct {
	Ref    core.Ref
	Locale string
	Sys    core.Sys
	Data   T
	Saver  Saver[T] // Active Record reference
}

// Saver persists a model.
type Saver[T any] interface {
	Save(ctx context.Context, m *EntityModel[T]) error
}

// Save persists the model using the attached saver.
func (m *EntityModel[T]) Save(ctx context.Context) error {
	if m.Saver == nil {
		return fmt.Errorf("model %s is detached (missing Saver)", m.Ref)
	}
	return m.Saver.Save(ctx, m)
}

// Repository wraps a core.Repository with typed, per-locale access.
type Repository[T any] struct {
	repo core.Repository
}

// NewRepository creates a type-safe wrapper around an existing repository.
func NewRepository[T any](repo core.Repository) *Repository[T] {
	return &Repository[T]{repo: repo}
}

// Get fetches the entity and decodes the given locale.
func (r *Repository[T]) Get(ctx context.Context, ref core.Ref, locale string) (*EntityModel[T], error) {
	entity, err := r.repo.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	data, err := decode[T](entity.Fields, locale)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}
	return &EntityModel[T]{Ref: ref, Locale: locale, Sys: entity.Sys, Data: data, Saver: r}, nil
}

// Save writes the model's locale back. Other locales are kept; the write is
// rejected with a version mismatch when the entity changed since Get.
func (r *Repository[T]) Save(ctx context.Context, m *EntityModel[T]) error {
	values, err := encode(m.Data)
	if err != nil {
		return err
	}

	current, err := r.repo.Get(ctx, m.Ref)
	if err != nil {
		return err
	}
	next := current.Clone()
	next.Sys = m.Sys
	for field, v := range values {
		if next.Fields[field] == nil {
			next.Fields[field] = map[string]any{}
		}
		if v == nil {
			delete(next.Fields[field], m.Locale)
			continue
		}
		next.Fields[field][m.Locale] = v
	}

	saved, err := r.repo.Update(ctx, next)
	if err != nil {
		return err
	}
	m.Sys = saved.Sys
	if m.Saver == nil {
		m.Saver = r
	}
	return nil
}

func encode[T any](data T) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal typed data: %w", err)
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("failed to convert typed data to fields: %w", err)
	}
	return values, nil
}

func decode[T any](fields core.Fields, locale string) (T, error) {
	values := make(map[string]any, len(fields))
	for field, locales := range fields {
		if v, ok := locales[locale]; ok {
			values[field] = v
		}
	}
	var data T
	raw, err := json.Marshal(values)
	if err != nil {
		return data, fmt.Errorf("fields marshal failed: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("unmarshal to target type failed: %w", err)
	}
	return data, nil
}
