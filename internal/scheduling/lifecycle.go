package scheduling

import "time"

// transitions is the full lifecycle table. Anything not listed here is
// rejected with an InvalidTransitionError.
var transitions = map[Status]map[Status]bool{
	StatusRequested: {
		StatusScheduled: true,
	},
	StatusScheduled: {
		StatusConfirmed:   true,
		StatusCompleted:   true,
		StatusCancelled:   true,
		StatusRescheduled: true,
	},
	StatusConfirmed: {
		StatusCompleted:   true,
		StatusCancelled:   true,
		StatusRescheduled: true,
	},
	// completed, cancelled and rescheduled are terminal.
}

// CanTransition reports whether the lifecycle table permits from → to.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// IsTerminal reports whether no further transitions are allowed. A
// rescheduled record is terminal for the original appointment; its
// RescheduledTo link points at the superseding record.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRescheduled
}

// IsActive reports whether an appointment in this status holds its slot.
func IsActive(s Status) bool {
	return s == StatusRequested || s == StatusScheduled || s == StatusConfirmed
}

// Transition applies a lifecycle change in place, stamping UpdatedAt.
func Transition(a *Appointment, to Status) error {
	if !CanTransition(a.Status, to) {
		return &InvalidTransitionError{From: a.Status, To: to}
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	return nil
}
