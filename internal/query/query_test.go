package query

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citymed/scheduling-core/internal/config"
	"github.com/citymed/scheduling-core/internal/scheduling"
)

const testDate = "2025-05-20"

func newFixture(t *testing.T) (*Service, *scheduling.Service, scheduling.Resource) {
	t.Helper()

	repo := scheduling.NewMemoryRepository()
	res := scheduling.Resource{ID: uuid.New(), Name: "Dr. Alva Reyes", Specialty: "General Practice"}
	repo.PutResource(res)

	sched, err := scheduling.NewService(repo, nil, config.Config{
		OpeningTime:      "08:00",
		ClosingTime:      "16:00",
		SlotGranularity:  30 * time.Minute,
		WeekViewInterval: 2 * time.Hour,
	})
	require.NoError(t, err)

	return NewService(repo, sched), sched, res
}

func book(t *testing.T, sched *scheduling.Service, res scheduling.Resource, date string, start time.Duration) *scheduling.Appointment {
	t.Helper()
	appt, err := sched.Book(context.Background(), scheduling.BookRequest{
		ResourceID: res.ID,
		Date:       date,
		SlotStart:  start,
		SubjectID:  uuid.New(),
		Priority:   scheduling.PriorityNormal,
	})
	require.NoError(t, err)
	return appt
}

func TestDayView(t *testing.T) {
	q, sched, res := newFixture(t)
	ctx := context.Background()

	nine := book(t, sched, res, testDate, 9*time.Hour)
	eleven := book(t, sched, res, testDate, 11*time.Hour)

	view, err := q.DayView(ctx, []uuid.UUID{res.ID}, testDate)
	require.NoError(t, err)

	require.Len(t, view.Slots, 16)
	require.Len(t, view.Rows, 1)

	row := view.Rows[0]
	assert.Equal(t, res.ID, row.ResourceID)

	filled := 0
	for i, cell := range row.Cells {
		if cell == nil {
			continue
		}
		filled++
		switch view.Slots[i].String() {
		case "09:00":
			assert.Equal(t, nine.ID, cell.ID)
		case "11:00":
			assert.Equal(t, eleven.ID, cell.ID)
		default:
			t.Errorf("unexpected occupied slot %s", view.Slots[i])
		}
	}
	assert.Equal(t, 2, filled)
}

func TestDayViewExcludesReleasedSlots(t *testing.T) {
	q, sched, res := newFixture(t)
	ctx := context.Background()

	appt := book(t, sched, res, testDate, 9*time.Hour)
	_, err := sched.Cancel(ctx, appt.ID)
	require.NoError(t, err)

	view, err := q.DayView(ctx, []uuid.UUID{res.ID}, testDate)
	require.NoError(t, err)
	for _, cell := range view.Rows[0].Cells {
		assert.Nil(t, cell)
	}
}

func TestWeekView(t *testing.T) {
	q, sched, res := newFixture(t)
	ctx := context.Background()

	// 08:30 falls into the 08:00 bucket, 14:00 into the 14:00 bucket.
	first := book(t, sched, res, testDate, 8*time.Hour+30*time.Minute)
	second := book(t, sched, res, "2025-05-22", 14*time.Hour)

	view, err := q.WeekView(ctx, []uuid.UUID{res.ID}, testDate, 7)
	require.NoError(t, err)

	require.Len(t, view.Dates, 7)
	require.Len(t, view.Slots, 4) // 08:00 10:00 12:00 14:00
	require.Len(t, view.Rows, 1)

	cells := view.Rows[0].Cells
	require.NotNil(t, cells[0][0])
	assert.Equal(t, first.ID, cells[0][0].ID)
	require.NotNil(t, cells[2][3])
	assert.Equal(t, second.ID, cells[2][3].ID)

	for di, day := range cells {
		for bi, cell := range day {
			if (di == 0 && bi == 0) || (di == 2 && bi == 3) {
				continue
			}
			assert.Nil(t, cell, "day %d bucket %d", di, bi)
		}
	}
}

func TestSearchFiltersAndOrder(t *testing.T) {
	q, sched, res := newFixture(t)
	ctx := context.Background()

	late := book(t, sched, res, "2025-05-21", 9*time.Hour)
	early := book(t, sched, res, testDate, 10*time.Hour)
	earlier := book(t, sched, res, testDate, 8*time.Hour)
	cancelled := book(t, sched, res, testDate, 11*time.Hour)
	_, err := sched.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)

	all, err := q.SearchAll(ctx, scheduling.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, earlier.ID, all[0].ID)
	assert.Equal(t, early.ID, all[1].ID)
	assert.Equal(t, late.ID, all[3].ID)

	byStatus, err := q.SearchAll(ctx, scheduling.Filter{Status: scheduling.StatusCancelled})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, cancelled.ID, byStatus[0].ID)

	byDate, err := q.SearchAll(ctx, scheduling.Filter{Date: "2025-05-21"})
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, late.ID, byDate[0].ID)

	bySubject, err := q.SearchAll(ctx, scheduling.Filter{SubjectContains: late.SubjectID.String()[:8]})
	require.NoError(t, err)
	require.Len(t, bySubject, 1)
}

func TestSearchSequenceIsRestartable(t *testing.T) {
	q, sched, res := newFixture(t)
	ctx := context.Background()

	book(t, sched, res, testDate, 9*time.Hour)
	book(t, sched, res, testDate, 10*time.Hour)

	seq := q.Search(ctx, scheduling.Filter{})

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	assert.Equal(t, 2, count())
	assert.Equal(t, 2, count(), "second iteration restarts from scratch")

	// Early break is fine too.
	for range seq {
		break
	}
}
