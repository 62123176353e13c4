package scheduling

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSlot         = errors.New("slot is not part of the service-day grid")
	ErrConflict            = errors.New("slot is already occupied")
	ErrQuotaExceeded       = errors.New("resource daily quota exceeded")
	ErrResourceNotFound    = errors.New("resource not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidTransition   = errors.New("invalid status transition")

	// ErrStaleAppointment signals a compare-and-swap status update that
	// found the record in a different state than the caller loaded. Callers
	// reload and re-validate rather than overwriting the concurrent change.
	ErrStaleAppointment = errors.New("appointment status changed concurrently")
)

// InvalidTransitionError names the current and requested states so callers
// can diagnose rejected lifecycle changes. It unwraps to ErrInvalidTransition.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %q to %q", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }
