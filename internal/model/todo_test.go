package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestTodoInput_ValidateCreate(t *testing.T) {
	tests := []struct {
		name    string
		input   TodoInput
		wantErr error
	}{
		{
			name:    "valid input",
			input:   TodoInput{Description: strPtr("Learn Go")},
			wantErr: nil,
		},
		{
			name:    "valid input with client ID",
			input:   TodoInput{ID: "01J0000000000000000000000", Description: strPtr("Learn Go")},
			wantErr: nil,
		},
		{
			name:    "valid input - max description length",
			input:   TodoInput{Description: strPtr(strings.Repeat("a", MaxDescriptionLength))},
			wantErr: nil,
		},
		{
			name:    "invalid - missing description",
			input:   TodoInput{Completed: boolPtr(true)},
			wantErr: ErrEmptyDescription,
		},
		{
			name:    "invalid - blank description",
			input:   TodoInput{Description: strPtr("   ")},
			wantErr: ErrEmptyDescription,
		},
		{
			name:    "invalid - description too long",
			input:   TodoInput{Description: strPtr(strings.Repeat("a", MaxDescriptionLength+1))},
			wantErr: ErrDescriptionTooLong,
		},
		{
			name:    "invalid - ID too long",
			input:   TodoInput{ID: strings.Repeat("x", MaxIDLength+1), Description: strPtr("a")},
			wantErr: ErrIDTooLong,
		},
		{
			name:    "invalid - ID with slash",
			input:   TodoInput{ID: "a/b", Description: strPtr("a")},
			wantErr: ErrInvalidIDCharacters,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			err := tt.input.ValidateCreate()

			// Assert
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateCreate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTodoInput_ValidateUpdate(t *testing.T) {
	tests := []struct {
		name    string
		input   TodoInput
		wantErr error
	}{
		{name: "empty patch", input: TodoInput{}, wantErr: nil},
		{name: "completed only", input: TodoInput{Completed: boolPtr(true)}, wantErr: nil},
		{name: "new description", input: TodoInput{Description: strPtr("b")}, wantErr: nil},
		{name: "blank description", input: TodoInput{Description: strPtr("")}, wantErr: ErrEmptyDescription},
		{
			name:    "description too long",
			input:   TodoInput{Description: strPtr(strings.Repeat("a", MaxDescriptionLength+1))},
			wantErr: ErrDescriptionTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.input.ValidateUpdate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateUpdate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTodoInput_Apply(t *testing.T) {
	// Arrange
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	base := Todo{ID: "1", Description: "a", Completed: false, CreatedAt: created}

	tests := []struct {
		name  string
		input TodoInput
		want  Todo
	}{
		{
			name:  "empty patch keeps everything",
			input: TodoInput{},
			want:  base,
		},
		{
			name:  "completed only",
			input: TodoInput{Completed: boolPtr(true)},
			want:  Todo{ID: "1", Description: "a", Completed: true, CreatedAt: created},
		},
		{
			name:  "ID in the body is ignored",
			input: TodoInput{ID: "2", Description: strPtr("b")},
			want:  Todo{ID: "1", Description: "b", CreatedAt: created},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			got := tt.input.Apply(base)

			// Assert
			if got != tt.want {
				t.Errorf("Apply() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTodo_JSON(t *testing.T) {
	// Arrange
	todo := Todo{
		ID:          "7073bc48",
		Description: "Learn Angular",
		Completed:   true,
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	// Act
	data, err := json.Marshal(todo)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	// Assert
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"id", "description", "completed", "createdAt", "updatedAt"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("encoded todo is missing %q: %s", key, data)
		}
	}
}

func TestTodoInput_PartialJSON(t *testing.T) {
	var in TodoInput
	if err := json.Unmarshal([]byte(`{"completed":false}`), &in); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if in.Description != nil {
		t.Errorf("Description = %v, want nil", *in.Description)
	}
	if in.Completed == nil || *in.Completed {
		t.Errorf("Completed = %v, want explicit false", in.Completed)
	}
}

func TestAPIResponses(t *testing.T) {
	ok := NewSuccessResponse([]Todo{{ID: "1"}})
	if !ok.Success || len(ok.Data) != 1 || ok.Error != "" {
		t.Errorf("NewSuccessResponse() = %+v", ok)
	}

	failed := NewErrorResponse[Todo]("boom")
	if failed.Success || failed.Error != "boom" {
		t.Errorf("NewErrorResponse() = %+v", failed)
	}
}

func TestNewChangeEvent(t *testing.T) {
	before := time.Now().UTC()
	event := NewChangeEvent(EventDeleted, "42")

	if event.Type != EventDeleted || event.ID != "42" {
		t.Errorf("NewChangeEvent() = %+v", event)
	}
	if event.Timestamp.Before(before) || event.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v, want UTC time after %v", event.Timestamp, before)
	}
}
