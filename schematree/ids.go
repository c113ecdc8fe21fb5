package schematree

import "github.com/google/uuid"

// IDSource produces node identifiers. Identifiers must be unique within an
// editing session; nothing else about them is meaningful.
type IDSource interface {
	NewID() string
}

// UUIDSource issues random UUIDs and is safe for concurrent use.
type UUIDSource struct{}

// NewID implements IDSource.
func (UUIDSource) NewID() string {
	return uuid.NewString()
}

// IDFunc adapts a function to IDSource.
type IDFunc func() string

// NewID implements IDSource.
func (f IDFunc) NewID() string {
	return f()
}
