package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/restresource/internal/model"
)

// MemoryStore implements Store interface with in-memory storage.
type MemoryStore struct {
	mu    sync.RWMutex
	todos map[string]model.Todo
	order []string
}

// NewMemoryStore creates a new MemoryStore instance holding seed.
func NewMemoryStore(seed ...model.Todo) *MemoryStore {
	s := &MemoryStore{
		todos: make(map[string]model.Todo, len(seed)),
	}
	for _, todo := range seed {
		if _, exists := s.todos[todo.ID]; exists {
			continue
		}
		s.todos[todo.ID] = todo
		s.order = append(s.order, todo.ID)
	}
	return s
}

// DefaultTodos returns the demo todo list.
func DefaultTodos() []model.Todo {
	now := time.Now().UTC()
	todo := func(id, description string, completed bool) model.Todo {
		return model.Todo{
			ID:          id,
			Description: description,
			Completed:   completed,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return []model.Todo{
		todo("7073bc48-5372-40f0-8d76-99c54c5cd7bd", "Learn Go", true),
		todo("b1c2d3e4-f5a6-4b8c-9d0e-f1a2b3c4d5e6", "Understand reactive cells", true),
		todo("3f0b9a2e-6c1d-4e8f-a7b5-2d4c6e8f0a1b", "Learn about REST resources", false),
		todo("5e6f7a8b-9c0d-4e1f-8a2b-3c4d5e6f7a8b", "Use restresource", false),
	}
}

// List returns the todos matching filter in creation order.
func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]model.Todo, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list todos: %w", ctx.Err())
	default:
	}

	query := strings.ToLower(filter.Query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	todos := make([]model.Todo, 0, len(s.order))
	for _, id := range s.order {
		todo := s.todos[id]
		if query != "" && !strings.Contains(strings.ToLower(todo.Description), query) {
			continue
		}
		if filter.Completed != nil && todo.Completed != *filter.Completed {
			continue
		}
		todos = append(todos, todo)
		if filter.Limit > 0 && len(todos) == filter.Limit {
			break
		}
	}

	return todos, nil
}

// Get retrieves a todo by its ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Todo, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get todo: %w", ctx.Err())
	default:
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	todo, exists := s.todos[id]
	if !exists {
		return nil, ErrNotFound
	}

	return &todo, nil
}

// Create adds a todo. The input ID is used when set, otherwise a UUID is
// generated.
func (s *MemoryStore) Create(ctx context.Context, input *model.TodoInput) (*model.Todo, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("create todo: %w", ctx.Err())
	default:
	}

	if input == nil {
		return nil, fmt.Errorf("create todo: %w", ErrNilInput)
	}

	id := input.ID
	if id == "" {
		id = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.todos[id]; exists {
		return nil, fmt.Errorf("create todo %s: %w", id, ErrAlreadyExists)
	}

	now := time.Now().UTC()
	todo := input.Apply(model.Todo{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	})

	s.todos[id] = todo
	s.order = append(s.order, id)

	return &todo, nil
}

// Update applies the set fields of input to an existing todo.
func (s *MemoryStore) Update(ctx context.Context, id string, input *model.TodoInput) (*model.Todo, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("update todo: %w", ctx.Err())
	default:
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	if input == nil {
		return nil, fmt.Errorf("update todo: %w", ErrNilInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.todos[id]
	if !exists {
		return nil, ErrNotFound
	}

	updated := input.Apply(existing)
	updated.UpdatedAt = time.Now().UTC()
	s.todos[id] = updated

	return &updated, nil
}

// Delete removes a todo and returns it.
func (s *MemoryStore) Delete(ctx context.Context, id string) (*model.Todo, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("delete todo: %w", ctx.Err())
	default:
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	todo, exists := s.todos[id]
	if !exists {
		return nil, ErrNotFound
	}

	delete(s.todos, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })

	return &todo, nil
}
