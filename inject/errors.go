package inject

import (
	"errors"
	"fmt"
)

var (
	ErrNoMatchingProvider = errors.New("no matching provider")
	ErrAlreadyWoven       = errors.New("already woven")
	ErrFrozen             = errors.New("type descriptor is frozen")
	ErrDuplicateType      = errors.New("type already registered")
	ErrInvalidRule        = errors.New("invalid binding rule")
	ErrInvalidIndex       = errors.New("invalid resolver index")
	ErrNotRegistered      = errors.New("type descriptor is not registered")
)

// ResolveError describes a resolution that produced no value.
type ResolveError struct {
	Type   string
	Member string
	Slot   string
	Err    error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s.%s[%s]: %v", e.Type, e.Member, e.Slot, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }
