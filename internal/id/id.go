// Package id generates and recognizes entity identifiers.
package id

import "github.com/google/uuid"

// New returns a random (version 4) UUID string for a new entity.
func New() string {
	return uuid.NewString()
}

// IsID reports whether ref has the shape of an entity identifier.
// Lookups that accept "id or permalink" use it to pick the index.
func IsID(ref string) bool {
	_, err := uuid.Parse(ref)
	return err == nil && len(ref) == 36
}
