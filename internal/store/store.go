// Package store provides data storage interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/vyrodovalexey/restresource/internal/model"
)

// Store errors.
var (
	ErrNotFound      = errors.New("todo not found")
	ErrAlreadyExists = errors.New("todo already exists")
	ErrInvalidID     = errors.New("invalid todo ID")
	ErrNilInput      = errors.New("todo input cannot be nil")
)

// ListFilter narrows List results. The zero value matches every todo.
type ListFilter struct {
	// Query matches todos whose description contains it, ignoring case.
	Query string
	// Completed, when set, matches todos with that completion state.
	Completed *bool
	// Limit caps the number of results when positive.
	Limit int
}

// Store defines the interface for todo storage operations.
type Store interface {
	// List returns the todos matching filter in creation order.
	List(ctx context.Context, filter ListFilter) ([]model.Todo, error)

	// Get retrieves a todo by its ID.
	Get(ctx context.Context, id string) (*model.Todo, error)

	// Create adds a todo. The input ID is used when set, otherwise one is generated.
	Create(ctx context.Context, input *model.TodoInput) (*model.Todo, error)

	// Update applies the set fields of input to an existing todo.
	Update(ctx context.Context, id string, input *model.TodoInput) (*model.Todo, error)

	// Delete removes a todo and returns it.
	Delete(ctx context.Context, id string) (*model.Todo, error)
}
