package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/citymed/scheduling-core/internal/timegrid"
)

type Status string

const (
	StatusRequested   Status = "requested"
	StatusScheduled   Status = "scheduled"
	StatusConfirmed   Status = "confirmed"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
)

type Priority string

const (
	PriorityNormal    Priority = "normal"
	PriorityUrgent    Priority = "urgent"
	PriorityEmergency Priority = "emergency"
)

// ParsePriority maps a wire value to a Priority; empty defaults to normal.
func ParsePriority(v string) (Priority, bool) {
	switch Priority(v) {
	case "":
		return PriorityNormal, true
	case PriorityNormal, PriorityUrgent, PriorityEmergency:
		return Priority(v), true
	}
	return "", false
}

// Resource is a bookable entity supplied by the external directory.
// It is read-only within this service.
type Resource struct {
	ID        uuid.UUID
	Name      string
	Specialty string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment is the central mutable record. It is never deleted; terminal
// and superseded appointments are retained for history.
type Appointment struct {
	ID            uuid.UUID
	ResourceID    uuid.UUID
	Date          string // YYYY-MM-DD
	Slot          timegrid.Slot
	SubjectID     uuid.UUID
	Status        Status
	Priority      Priority
	Note          string
	RescheduledTo *uuid.UUID // set when Status is rescheduled
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
