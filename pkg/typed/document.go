package typed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/document"
	"github.com/aretw0/entitydoc/pkg/paths"
)

// Get reads one field-locale value of a live document as T.
func Get[T any](d *document.Document, field, locale string) (T, error) {
	var out T
	v := d.GetValueAt(paths.Field(field, locale))
	if v == nil {
		return out, fmt.Errorf("%w: %s has no value at %s", core.ErrNotFound, d.Ref(), paths.Field(field, locale))
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("marshal %s: %w", field, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %s as %T: %v", core.ErrInvalidValue, field, out, err)
	}
	return out, nil
}

// Set writes v to one field-locale of a live document. Structs and other
// composite values are stored in their JSON shape.
func Set[T any](ctx context.Context, d *document.Document, field, locale string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", field, err)
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("convert %s: %w", field, err)
	}
	return d.SetValueAt(ctx, paths.Field(field, locale), value)
}

// Decode reads every field of one locale of a live document into T.
func Decode[T any](d *document.Document, locale string) (T, error) {
	return decode[T](d.Snapshot().Fields, locale)
}
