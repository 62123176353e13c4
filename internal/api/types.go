package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/citymed/scheduling-core/internal/scheduling"
)

type BookAppointmentRequest struct {
	ResourceID     string `json:"resource_id"`
	Date           string `json:"date"` // YYYY-MM-DD
	Slot           string `json:"slot"` // HH:MM
	SubjectID      string `json:"subject_id"`
	Priority       string `json:"priority,omitempty"`
	Note           string `json:"note,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type RescheduleAppointmentRequest struct {
	ResourceID     string `json:"resource_id"`
	Date           string `json:"date"`
	Slot           string `json:"slot"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type AppointmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	ResourceID    uuid.UUID  `json:"resource_id"`
	Date          string     `json:"date"`
	Slot          string     `json:"slot"`
	SubjectID     uuid.UUID  `json:"subject_id"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	Note          string     `json:"note,omitempty"`
	RescheduledTo *uuid.UUID `json:"rescheduled_to,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		ResourceID:    a.ResourceID,
		Date:          a.Date,
		Slot:          a.Slot.String(),
		SubjectID:     a.SubjectID,
		Status:        string(a.Status),
		Priority:      string(a.Priority),
		Note:          a.Note,
		RescheduledTo: a.RescheduledTo,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

type ResourceResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty,omitempty"`
}

type DayViewResponse struct {
	Date  string           `json:"date"`
	Slots []string         `json:"slots"`
	Rows  []DayRowResponse `json:"rows"`
}

type DayRowResponse struct {
	ResourceID uuid.UUID              `json:"resource_id"`
	Cells      []*AppointmentResponse `json:"cells"`
}

type WeekViewResponse struct {
	Dates []string          `json:"dates"`
	Slots []string          `json:"slots"`
	Rows  []WeekRowResponse `json:"rows"`
}

type WeekRowResponse struct {
	ResourceID uuid.UUID                `json:"resource_id"`
	Cells      [][]*AppointmentResponse `json:"cells"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
