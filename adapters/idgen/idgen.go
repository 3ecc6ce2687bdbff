// Package idgen provides ID generation implementations.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/artpar/trustmeter/ports"
	"github.com/google/uuid"
)

// UUID generates time-ordered UUIDv7 identifiers.
type UUID struct{}

// New returns a new UUIDv7, falling back to v4 if the clock source fails.
func (UUID) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

var _ ports.IDGenerator = UUID{}

// Sequential generates prefix1, prefix2, ... (for tests).
type Sequential struct {
	prefix string
	n      atomic.Uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New returns the next ID.
func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.n.Add(1), 10)
}

var _ ports.IDGenerator = (*Sequential)(nil)
