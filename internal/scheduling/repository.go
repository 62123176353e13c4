package scheduling

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows appointment searches. Zero values match everything.
// SubjectContains matches against the subject identifier; name resolution
// belongs to the external subject directory, this core stores only the id.
type Filter struct {
	SubjectContains string
	ResourceID      uuid.UUID
	Date            string
	Status          Status
}

// Repository stores appointment records, the resource directory snapshot and
// the event log. Appointments are append-and-update only, never deleted.
type Repository interface {
	GetResourceByID(ctx context.Context, id uuid.UUID) (*Resource, error)
	ListResources(ctx context.Context) ([]Resource, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	InsertAppointment(ctx context.Context, a *Appointment) error

	// UpdateAppointmentStatus moves an appointment from one status to
	// another only if it is still in the expected state, returning the
	// updated record. ErrStaleAppointment means the record moved on since
	// the caller loaded it.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// CommitReschedule atomically marks the original as rescheduled with a
	// forward link to the successor and inserts the successor record. If
	// the original is no longer in origFrom nothing is written and
	// ErrStaleAppointment is returned.
	CommitReschedule(ctx context.Context, origID uuid.UUID, origFrom Status, successor *Appointment) (*Appointment, error)

	// ListActive returns every appointment still holding a slot, used to
	// rebuild calendar occupancy at startup.
	ListActive(ctx context.Context) ([]Appointment, error)

	SearchAppointments(ctx context.Context, f Filter) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
