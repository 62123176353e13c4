package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citymed/scheduling-core/internal/timegrid"
)

func storedAppointment(status Status) *Appointment {
	now := time.Now()
	return &Appointment{
		ID:         uuid.New(),
		ResourceID: uuid.New(),
		Date:       testDate,
		Slot:       timegrid.Slot{Start: 9 * time.Hour, Duration: 30 * time.Minute},
		SubjectID:  uuid.New(),
		Status:     status,
		Priority:   PriorityNormal,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestUpdateAppointmentStatusGuard(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a := storedAppointment(StatusScheduled)
	require.NoError(t, repo.InsertAppointment(ctx, a))

	// A guard on the wrong state writes nothing.
	_, err := repo.UpdateAppointmentStatus(ctx, a.ID, StatusConfirmed, StatusCompleted)
	assert.ErrorIs(t, err, ErrStaleAppointment)

	stored, err := repo.GetAppointmentByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, stored.Status)

	updated, err := repo.UpdateAppointmentStatus(ctx, a.ID, StatusScheduled, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, updated.Status)

	_, err = repo.UpdateAppointmentStatus(ctx, uuid.New(), StatusScheduled, StatusConfirmed)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCommitRescheduleGuard(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	orig := storedAppointment(StatusScheduled)
	require.NoError(t, repo.InsertAppointment(ctx, orig))
	_, err := repo.UpdateAppointmentStatus(ctx, orig.ID, StatusScheduled, StatusCancelled)
	require.NoError(t, err)

	// A stale commit writes neither side: the original keeps its state and
	// the successor row never appears.
	successor := storedAppointment(StatusScheduled)
	_, err = repo.CommitReschedule(ctx, orig.ID, StatusScheduled, successor)
	assert.ErrorIs(t, err, ErrStaleAppointment)

	stored, err := repo.GetAppointmentByID(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)
	assert.Nil(t, stored.RescheduledTo)

	_, err = repo.GetAppointmentByID(ctx, successor.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCommitReschedule(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	orig := storedAppointment(StatusConfirmed)
	require.NoError(t, repo.InsertAppointment(ctx, orig))
	successor := storedAppointment(StatusScheduled)

	updated, err := repo.CommitReschedule(ctx, orig.ID, StatusConfirmed, successor)
	require.NoError(t, err)
	assert.Equal(t, StatusRescheduled, updated.Status)
	require.NotNil(t, updated.RescheduledTo)
	assert.Equal(t, successor.ID, *updated.RescheduledTo)

	stored, err := repo.GetAppointmentByID(ctx, successor.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, stored.Status)
}
