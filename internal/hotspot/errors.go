package hotspot

import (
	"errors"
	"fmt"
)

var (
	// ErrLookupMiss means a selected marker has no entity in the last-known
	// collection, usually because it was deleted concurrently.
	ErrLookupMiss = errors.New("entity not found for marker")

	// ErrNoPendingCreation is returned by Submit when no click is awaiting details.
	ErrNoPendingCreation = errors.New("no pending creation")

	// ErrNotMounted is returned when the controller has no live surface.
	ErrNotMounted = errors.New("controller not mounted")
)

// LookupMissError names the marker id that could not be resolved.
type LookupMissError struct {
	ID string
}

func (e *LookupMissError) Error() string {
	return fmt.Sprintf("marker %q: %v", e.ID, ErrLookupMiss)
}

func (e *LookupMissError) Unwrap() error { return ErrLookupMiss }
