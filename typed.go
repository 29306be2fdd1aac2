package entitydoc

import (
	"context"

	"github.com/aretw0/entitydoc/pkg/typed"
)

// EntityModel is one locale of an entity decoded into T.
type EntityModel[T any] = typed.EntityModel[T]

// TypedRepository reads and writes entities as T.
type TypedRepository[T any] = typed.Repository[T]

// NewTypedRepository wraps repo for type-safe access.
func NewTypedRepository[T any](repo Repository) *TypedRepository[T] {
	return typed.NewRepository[T](repo)
}

// GetValue reads one field-locale value of a document as T.
func GetValue[T any](d *Document, field, locale string) (T, error) {
	return typed.Get[T](d, field, locale)
}

// SetValue writes one field-locale value of a document.
func SetValue[T any](ctx context.Context, d *Document, field, locale string, v T) error {
	return typed.Set(ctx, d, field, locale, v)
}
