package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/citymed/scheduling-core/internal/config"
	redisclient "github.com/citymed/scheduling-core/internal/redis"
	"github.com/citymed/scheduling-core/internal/timegrid"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
)

// Service is the scheduling coordinator. It owns one Calendar per resource,
// resolves booking requests against the slot grid and the calendars, and
// drives appointments through their lifecycle. There is no other writer:
// calendar occupancy and repository state only change through these methods.
type Service struct {
	repo   Repository
	locker redisclient.Locker // nil when running single-instance
	cfg    config.Config
	grid   timegrid.Grid

	mu        sync.Mutex
	calendars map[uuid.UUID]*Calendar
	idem      map[string]uuid.UUID
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config) (*Service, error) {
	grid, err := timegrid.Generate(cfg.OpeningTime, cfg.ClosingTime, cfg.SlotGranularity)
	if err != nil {
		return nil, fmt.Errorf("build slot grid: %w", err)
	}

	return &Service{
		repo:      repo,
		locker:    locker,
		cfg:       cfg,
		grid:      grid,
		calendars: make(map[uuid.UUID]*Calendar),
		idem:      make(map[string]uuid.UUID),
	}, nil
}

// Grid exposes the service-day slot grid for query projections.
func (s *Service) Grid() timegrid.Grid { return s.grid }

// WeekViewInterval is the sampling interval used by the week view.
func (s *Service) WeekViewInterval() time.Duration { return s.cfg.WeekViewInterval }

// LoadCalendars rebuilds calendar occupancy from the repository's active
// appointments, used at startup when running against Postgres.
func (s *Service) LoadCalendars(ctx context.Context) error {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active appointments: %w", err)
	}
	for _, a := range active {
		cal := s.calendar(a.ResourceID)
		if err := cal.Reserve(a.Date, a.Slot.Start, a.ID, 0); err != nil {
			return fmt.Errorf("hydrate occupancy for appointment %s: %w", a.ID, err)
		}
	}
	return nil
}

// Occupancy returns the occupied slots for one resource and date.
func (s *Service) Occupancy(resourceID uuid.UUID, date string) map[time.Duration]uuid.UUID {
	return s.calendar(resourceID).Occupancy(date)
}

func (s *Service) calendar(resourceID uuid.UUID) *Calendar {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, ok := s.calendars[resourceID]
	if !ok {
		cal = NewCalendar(resourceID)
		s.calendars[resourceID] = cal
	}
	return cal
}

type BookRequest struct {
	ResourceID     uuid.UUID
	Date           string // YYYY-MM-DD
	SlotStart      time.Duration
	SubjectID      uuid.UUID
	Priority       Priority
	Note           string
	IdempotencyKey string
}

// Book reserves a slot and creates the appointment, leaving it scheduled.
// Quota is enforced per resource per day unless the request carries emergency
// priority and the deployment enables the override; slot occupancy itself is
// never overridden.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if replay, ok, err := s.replay(ctx, "book", req.IdempotencyKey); ok {
		return replay, err
	}

	slot, ok := s.grid.Lookup(req.SlotStart)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrInvalidSlot, timegrid.Slot{Start: req.SlotStart}.String(), req.Date)
	}

	if _, err := s.repo.GetResourceByID(ctx, req.ResourceID); err != nil {
		return nil, fmt.Errorf("load resource: %w", err)
	}

	var created *Appointment

	err := s.withBookingLock(ctx, req.ResourceID, req.Date, slot, func(lockCtx context.Context) error {
		now := time.Now()
		appt := &Appointment{
			ID:         uuid.New(),
			ResourceID: req.ResourceID,
			Date:       req.Date,
			Slot:       slot,
			SubjectID:  req.SubjectID,
			Status:     StatusRequested,
			Priority:   req.Priority,
			Note:       req.Note,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		cal := s.calendar(req.ResourceID)
		if err := cal.Reserve(req.Date, slot.Start, appt.ID, s.effectiveQuota(req.Priority, 0)); err != nil {
			return err
		}

		if err := Transition(appt, StatusScheduled); err != nil {
			cal.Release(req.Date, slot.Start, appt.ID)
			return err
		}
		if err := s.repo.InsertAppointment(lockCtx, appt); err != nil {
			cal.Release(req.Date, slot.Start, appt.ID)
			return fmt.Errorf("insert appointment: %w", err)
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"resource_id": req.ResourceID.String(),
			"subject_id":  req.SubjectID.String(),
			"date":        req.Date,
			"slot":        slot.String(),
			"priority":    string(req.Priority),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.remember("book", req.IdempotencyKey, created.ID)
	return created, nil
}

// Cancel releases the appointment's slot and marks it cancelled. Cancelling
// an already-cancelled appointment succeeds without further effect.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	for {
		appt, err := s.repo.GetAppointmentByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load appointment: %w", err)
		}

		if appt.Status == StatusCancelled {
			return appt, nil
		}
		if !CanTransition(appt.Status, StatusCancelled) {
			return nil, &InvalidTransitionError{From: appt.Status, To: StatusCancelled}
		}

		updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, StatusCancelled)
		if errors.Is(err, ErrStaleAppointment) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update appointment: %w", err)
		}

		s.calendar(updated.ResourceID).Release(updated.Date, updated.Slot.Start, updated.ID)

		s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{})
		return updated, nil
	}
}

type RescheduleRequest struct {
	AppointmentID  uuid.UUID
	NewResourceID  uuid.UUID
	NewDate        string
	NewSlotStart   time.Duration
	IdempotencyKey string
}

// Reschedule moves an appointment to a new (resource, date, slot) as one
// logical operation. The new slot is reserved first, then the original is
// moved to rescheduled and the successor inserted in a single repository
// commit guarded on the original's status, so a failed or raced reschedule
// leaves the original untouched and never strands a successor. The original
// record points at its successor.
func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (*Appointment, error) {
	if replay, ok, err := s.replay(ctx, "reschedule", req.IdempotencyKey); ok {
		return replay, err
	}

	slot, ok := s.grid.Lookup(req.NewSlotStart)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrInvalidSlot, timegrid.Slot{Start: req.NewSlotStart}.String(), req.NewDate)
	}
	if _, err := s.repo.GetResourceByID(ctx, req.NewResourceID); err != nil {
		return nil, fmt.Errorf("load resource: %w", err)
	}

	for {
		orig, err := s.repo.GetAppointmentByID(ctx, req.AppointmentID)
		if err != nil {
			return nil, fmt.Errorf("load appointment: %w", err)
		}
		if !CanTransition(orig.Status, StatusRescheduled) {
			return nil, &InvalidTransitionError{From: orig.Status, To: StatusRescheduled}
		}

		var (
			created *Appointment
			stale   bool
		)

		err = s.withBookingLock(ctx, req.NewResourceID, req.NewDate, slot, func(lockCtx context.Context) error {
			now := time.Now()
			next := &Appointment{
				ID:         uuid.New(),
				ResourceID: req.NewResourceID,
				Date:       req.NewDate,
				Slot:       slot,
				SubjectID:  orig.SubjectID,
				Status:     StatusRequested,
				Priority:   orig.Priority,
				Note:       orig.Note,
				CreatedAt:  now,
				UpdatedAt:  now,
			}

			// Moving within the same resource and day frees a slot the moment
			// the old one is released, so the transient extra occupancy must
			// not trip the quota.
			slack := 0
			if req.NewResourceID == orig.ResourceID && req.NewDate == orig.Date {
				slack = 1
			}

			newCal := s.calendar(req.NewResourceID)
			if err := newCal.Reserve(req.NewDate, slot.Start, next.ID, s.effectiveQuota(next.Priority, slack)); err != nil {
				return err
			}

			if err := Transition(next, StatusScheduled); err != nil {
				newCal.Release(req.NewDate, slot.Start, next.ID)
				return err
			}
			if _, err := s.repo.CommitReschedule(lockCtx, orig.ID, orig.Status, next); err != nil {
				newCal.Release(req.NewDate, slot.Start, next.ID)
				if errors.Is(err, ErrStaleAppointment) {
					// The original moved on since we loaded it. Reload and
					// re-validate from the top.
					stale = true
					return nil
				}
				return fmt.Errorf("commit reschedule: %w", err)
			}

			s.calendar(orig.ResourceID).Release(orig.Date, orig.Slot.Start, orig.ID)

			created = next

			s.logEvent(lockCtx, orig.ID, EventAppointmentRescheduled, map[string]any{
				"superseded_by": next.ID.String(),
				"new_date":      req.NewDate,
				"new_slot":      slot.String(),
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
		if stale {
			continue
		}

		s.remember("reschedule", req.IdempotencyKey, created.ID)
		return created, nil
	}
}

// Confirm moves a scheduled appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed, EventAppointmentConfirmed)
}

// Complete marks the visit as having occurred. A completed appointment no
// longer holds its slot, matching how calendars are rebuilt from the active
// set at startup.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.transition(ctx, id, StatusCompleted, EventAppointmentCompleted)
	if err != nil {
		return nil, err
	}
	s.calendar(appt.ResourceID).Release(appt.Date, appt.Slot.Start, appt.ID)
	return appt, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, eventType string) (*Appointment, error) {
	for {
		appt, err := s.repo.GetAppointmentByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load appointment: %w", err)
		}
		if !CanTransition(appt.Status, to) {
			return nil, &InvalidTransitionError{From: appt.Status, To: to}
		}

		updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to)
		if errors.Is(err, ErrStaleAppointment) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update appointment: %w", err)
		}

		s.logEvent(ctx, updated.ID, eventType, map[string]any{})
		return updated, nil
	}
}

// GetAppointment returns a single appointment record.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

// effectiveQuota resolves the per-day quota for a request. Emergency
// priority lifts the quota only when the deployment enables the override;
// it never lifts slot occupancy itself.
func (s *Service) effectiveQuota(p Priority, slack int) int {
	if s.cfg.DailyQuota <= 0 {
		return 0
	}
	if p == PriorityEmergency && s.cfg.EmergencyOverride {
		return 0
	}
	return s.cfg.DailyQuota + slack
}

func (s *Service) withBookingLock(ctx context.Context, resourceID uuid.UUID, date string, slot timegrid.Slot, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithBookingLock(ctx, resourceID, date, slot.String(), fn)
}

// replay resolves a previously seen idempotency key to its original outcome.
func (s *Service) replay(ctx context.Context, op, key string) (*Appointment, bool, error) {
	if key == "" {
		return nil, false, nil
	}

	s.mu.Lock()
	id, seen := s.idem[op+":"+key]
	s.mu.Unlock()
	if !seen {
		return nil, false, nil
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, true, fmt.Errorf("replay idempotent %s: %w", op, err)
	}
	return appt, true, nil
}

func (s *Service) remember(op, key string, id uuid.UUID) {
	if key == "" {
		return
	}
	s.mu.Lock()
	s.idem[op+":"+key] = id
	s.mu.Unlock()
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
