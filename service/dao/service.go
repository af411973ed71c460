// Package dao defines the generic storage contract used for sessions and
// approval decisions.
package dao

import (
	"context"
)

// Service stores entities of type T keyed by K.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	// Load returns ErrNotFound when no entity is stored under id.
	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	// List returns entities in insertion order. Parameters are advisory;
	// implementations may ignore them and leave filtering to the caller.
	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
