package domain

import (
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces identifiers for sales and items
type IDGenerator interface {
	NewID() string
}

// Clock provides the current instant
type Clock interface {
	Now() time.Time
}

// UUIDGenerator generates random UUIDs
type UUIDGenerator struct{}

// NewID returns a new random UUID string
func (UUIDGenerator) NewID() string {
	return uuid.New().String()
}

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Providers bundles the collaborators an aggregate needs for ids and timestamps
type Providers struct {
	IDs   IDGenerator
	Clock Clock
}

// DefaultProviders returns UUID ids and the system clock
func DefaultProviders() Providers {
	return Providers{IDs: UUIDGenerator{}, Clock: SystemClock{}}
}

func (p Providers) withDefaults() Providers {
	if p.IDs == nil {
		p.IDs = UUIDGenerator{}
	}
	if p.Clock == nil {
		p.Clock = SystemClock{}
	}
	return p
}
