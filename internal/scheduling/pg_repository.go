package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citymed/scheduling-core/internal/timegrid"
)

// PgRepository is the durable Repository. Appointment rows are the audit
// trail: they are inserted and updated, never deleted.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanResource(row pgx.Row) (*Resource, error) {
	var r Resource

	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.Specialty,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}

	return &r, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a             Appointment
		date          time.Time
		startMin      int
		durationMin   int
		rescheduledTo *uuid.UUID
	)

	err := row.Scan(
		&a.ID,
		&a.ResourceID,
		&date,
		&startMin,
		&durationMin,
		&a.SubjectID,
		&a.Status,
		&a.Priority,
		&a.Note,
		&rescheduledTo,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = date.Format(time.DateOnly)
	a.Slot = timegrid.Slot{
		Start:    time.Duration(startMin) * time.Minute,
		Duration: time.Duration(durationMin) * time.Minute,
	}
	a.RescheduledTo = rescheduledTo
	return &a, nil
}

const appointmentColumns = `
	id, resource_id, date, slot_start_min, slot_duration_min,
	subject_id, status, priority, note, rescheduled_to, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetResourceByID(ctx context.Context, id uuid.UUID) (*Resource, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM resources
		WHERE id = $1
	`, id)
	return scanResource(row)
}

func (r *PgRepository) ListResources(ctx context.Context) ([]Resource, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM resources
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) InsertAppointment(ctx context.Context, a *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (
			id, resource_id, date, slot_start_min, slot_duration_min,
			subject_id, status, priority, note, rescheduled_to, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		a.ID,
		a.ResourceID,
		a.Date,
		int(a.Slot.Start/time.Minute),
		int(a.Slot.Duration/time.Minute),
		a.SubjectID,
		a.Status,
		a.Priority,
		a.Note,
		a.RescheduledTo,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns+`
	`, id, from, to)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		// Row exists but the guard did not match, or the id is unknown.
		if _, getErr := r.GetAppointmentByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStaleAppointment
	}
	return a, err
}

func (r *PgRepository) CommitReschedule(ctx context.Context, origID uuid.UUID, origFrom Status, successor *Appointment) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reschedule: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3, rescheduled_to = $4, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns+`
	`, origID, origFrom, StatusRescheduled, successor.ID)

	orig, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		if _, getErr := r.GetAppointmentByID(ctx, origID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStaleAppointment
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (
			id, resource_id, date, slot_start_min, slot_duration_min,
			subject_id, status, priority, note, rescheduled_to, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		successor.ID,
		successor.ResourceID,
		successor.Date,
		int(successor.Slot.Start/time.Minute),
		int(successor.Slot.Duration/time.Minute),
		successor.SubjectID,
		successor.Status,
		successor.Priority,
		successor.Note,
		successor.RescheduledTo,
		successor.CreatedAt,
		successor.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert successor: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reschedule: %w", err)
	}
	return orig, nil
}

func (r *PgRepository) ListActive(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('requested', 'scheduled', 'confirmed')
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) SearchAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE 1=1`
	args := []any{}

	if f.ResourceID != uuid.Nil {
		args = append(args, f.ResourceID)
		query += fmt.Sprintf(" AND resource_id = $%d", len(args))
	}
	if f.Date != "" {
		args = append(args, f.Date)
		query += fmt.Sprintf(" AND date = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.SubjectContains != "" {
		args = append(args, "%"+f.SubjectContains+"%")
		query += fmt.Sprintf(" AND subject_id::text ILIKE $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		ev.EventType,
		ev.AppointmentID,
		ev.Payload,
		ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
