package scheduling

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDate = "2025-05-20"

func TestReserveAndRelease(t *testing.T) {
	cal := NewCalendar(uuid.New())
	nine := 9 * time.Hour

	assert.True(t, cal.IsAvailable(testDate, nine))

	apptID := uuid.New()
	require.NoError(t, cal.Reserve(testDate, nine, apptID, 0))
	assert.False(t, cal.IsAvailable(testDate, nine))
	assert.ErrorIs(t, cal.Reserve(testDate, nine, uuid.New(), 0), ErrConflict)

	occ := cal.Occupancy(testDate)
	require.Len(t, occ, 1)
	assert.Equal(t, apptID, occ[nine])

	cal.Release(testDate, nine, apptID)
	assert.True(t, cal.IsAvailable(testDate, nine))
	assert.Equal(t, 0, cal.CountActive(testDate))

	// Releasing a free key is a no-op.
	cal.Release(testDate, nine, apptID)
}

func TestReleaseOnlyByOwner(t *testing.T) {
	cal := NewCalendar(uuid.New())
	nine := 9 * time.Hour

	owner := uuid.New()
	require.NoError(t, cal.Reserve(testDate, nine, owner, 0))

	// A stale holder cannot evict the current occupant.
	cal.Release(testDate, nine, uuid.New())
	assert.False(t, cal.IsAvailable(testDate, nine))
	assert.Equal(t, owner, cal.Occupancy(testDate)[nine])

	cal.Release(testDate, nine, owner)
	assert.True(t, cal.IsAvailable(testDate, nine))
}

func TestReserveQuota(t *testing.T) {
	cal := NewCalendar(uuid.New())

	require.NoError(t, cal.Reserve(testDate, 9*time.Hour, uuid.New(), 2))
	require.NoError(t, cal.Reserve(testDate, 10*time.Hour, uuid.New(), 2))
	assert.ErrorIs(t, cal.Reserve(testDate, 11*time.Hour, uuid.New(), 2), ErrQuotaExceeded)

	// A different day has its own count.
	assert.NoError(t, cal.Reserve("2025-05-21", 9*time.Hour, uuid.New(), 2))

	// Occupied beats quota: the conflict is reported, not the quota.
	assert.ErrorIs(t, cal.Reserve(testDate, 9*time.Hour, uuid.New(), 2), ErrConflict)
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	cal := NewCalendar(uuid.New())
	nine := 9 * time.Hour

	const attempts = 100
	var wins atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cal.Reserve(testDate, nine, uuid.New(), 0); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load())
	assert.Equal(t, 1, cal.CountActive(testDate))
}
