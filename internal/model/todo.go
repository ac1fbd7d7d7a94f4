// Package model defines data structures used throughout the application.
package model

import (
	"errors"
	"strings"
	"time"
)

// Validation errors for Todo.
var (
	ErrEmptyDescription    = errors.New("description is required")
	ErrDescriptionTooLong  = errors.New("description cannot exceed 1000 characters")
	ErrIDTooLong           = errors.New("id cannot exceed 128 characters")
	ErrInvalidIDCharacters = errors.New("id cannot contain '/', '?' or '#'")
)

// Validation constants.
const (
	MaxDescriptionLength = 1000
	MaxIDLength          = 128
)

// Todo is one entry of the todo list.
type Todo struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TodoInput is the body of create and update requests. Nil fields are left
// unchanged by an update.
type TodoInput struct {
	ID          string  `json:"id,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// ValidateCreate checks a create request. A client-supplied ID is optional.
func (in *TodoInput) ValidateCreate() error {
	if in.Description == nil || strings.TrimSpace(*in.Description) == "" {
		return ErrEmptyDescription
	}
	if err := validateDescription(*in.Description); err != nil {
		return err
	}
	return ValidateID(in.ID)
}

// ValidateUpdate checks an update request.
func (in *TodoInput) ValidateUpdate() error {
	if in.Description == nil {
		return nil
	}
	if strings.TrimSpace(*in.Description) == "" {
		return ErrEmptyDescription
	}
	return validateDescription(*in.Description)
}

// Apply returns t with the fields set in in.
func (in *TodoInput) Apply(t Todo) Todo {
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Completed != nil {
		t.Completed = *in.Completed
	}
	return t
}

// ValidateID checks a client-supplied todo ID. The empty ID is valid and
// means the server assigns one.
func ValidateID(id string) error {
	if len(id) > MaxIDLength {
		return ErrIDTooLong
	}
	if strings.ContainsAny(id, "/?#") {
		return ErrInvalidIDCharacters
	}
	return nil
}

func validateDescription(description string) error {
	if len(description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// APIResponse is a generic wrapper for API responses.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewSuccessResponse creates a successful API response.
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error API response.
func NewErrorResponse[T any](errMsg string) APIResponse[T] {
	return APIResponse[T]{
		Success: false,
		Error:   errMsg,
	}
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ChangeEvent is broadcast over the websocket feed whenever the todo list
// changes.
type ChangeEvent struct {
	Type      string    `json:"type"`
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Change event types.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
	EventPing    = "ping"
)

// NewChangeEvent creates a change event stamped with the current time.
func NewChangeEvent(eventType, id string) ChangeEvent {
	return ChangeEvent{
		Type:      eventType,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}
