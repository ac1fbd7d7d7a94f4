package resource

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// UUIDGenerator returns an ID generator producing random (v4) UUID strings.
func UUIDGenerator() func() string {
	return func() string {
		return uuid.New().String()
	}
}

// ULIDGenerator returns an ID generator producing lexicographically
// sortable ULID strings, so that client-created items sort by creation time.
func ULIDGenerator() func() string {
	return func() string {
		return ulid.Make().String()
	}
}
