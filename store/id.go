package store

import "github.com/google/uuid"

// IDGenerator assigns identifiers to new rides.
type IDGenerator interface {
	NewID() (string, error)
}

// IDFunc adapts a function to IDGenerator.
type IDFunc func() (string, error)

// NewID calls f.
func (f IDFunc) NewID() (string, error) { return f() }

// UUIDGenerator issues time-ordered UUIDv7 identifiers. IDs created later
// sort after earlier ones within the partition.
type UUIDGenerator struct{}

// NewID returns a new UUIDv7 string.
func (UUIDGenerator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
