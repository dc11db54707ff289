// Package record defines the authoritative candidate record store consumed by
// the matching and reconciliation engines. Records are created, updated and
// deleted by the upload/parse flow outside this module; the core only reads.
package record

import (
	"context"
	"errors"
)

// Record is one authoritative candidate entity.
type Record struct {
	ID         string            // UUID
	Text       string            // Free-text candidate profile
	Attributes map[string]string // Denormalized fields (name, title, ...)
}

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("record not found")

// Store is the read side of the authoritative record store.
type Store interface {
	// Get returns the record with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	// ExistsByID reports whether a record with the given id exists.
	ExistsByID(ctx context.Context, id string) (bool, error)
	// ListAllIDs returns the ids of every record in the store.
	ListAllIDs(ctx context.Context) ([]string, error)
}
