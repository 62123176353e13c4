// Package query holds the read-only projections over scheduling state: the
// single-day board, the week-at-a-glance view and the filtered search. All
// projections are side-effect-free.
package query

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/citymed/scheduling-core/internal/scheduling"
	"github.com/citymed/scheduling-core/internal/timegrid"
)

type Service struct {
	repo  scheduling.Repository
	sched *scheduling.Service
}

func NewService(repo scheduling.Repository, sched *scheduling.Service) *Service {
	return &Service{repo: repo, sched: sched}
}

// DayView is the single-day scheduling board: one row per resource, cells
// aligned with the grid slots. Empty cells are nil.
type DayView struct {
	Date  string
	Slots []timegrid.Slot
	Rows  []DayRow
}

type DayRow struct {
	ResourceID uuid.UUID
	Cells      []*scheduling.Appointment
}

func (s *Service) DayView(ctx context.Context, resourceIDs []uuid.UUID, date string) (*DayView, error) {
	slots := s.sched.Grid().Slots()

	view := &DayView{Date: date, Slots: slots}
	for _, rid := range resourceIDs {
		row, err := s.dayRow(ctx, rid, date, slots)
		if err != nil {
			return nil, err
		}
		view.Rows = append(view.Rows, row)
	}
	return view, nil
}

func (s *Service) dayRow(ctx context.Context, resourceID uuid.UUID, date string, slots []timegrid.Slot) (DayRow, error) {
	occ := s.sched.Occupancy(resourceID, date)

	row := DayRow{ResourceID: resourceID, Cells: make([]*scheduling.Appointment, len(slots))}
	for i, slot := range slots {
		id, taken := occ[slot.Start]
		if !taken {
			continue
		}
		appt, err := s.repo.GetAppointmentByID(ctx, id)
		if err != nil {
			return DayRow{}, fmt.Errorf("load appointment %s: %w", id, err)
		}
		row.Cells[i] = appt
	}
	return row, nil
}

// WeekView samples each day at a coarser interval: a cell holds the first
// active appointment inside its bucket, mirroring a week-at-a-glance board.
type WeekView struct {
	Dates []string
	Slots []timegrid.Slot
	Rows  []WeekRow
}

type WeekRow struct {
	ResourceID uuid.UUID
	// Cells[dayIdx][bucketIdx], nil where the bucket is free.
	Cells [][]*scheduling.Appointment
}

func (s *Service) WeekView(ctx context.Context, resourceIDs []uuid.UUID, from string, days int) (*WeekView, error) {
	start, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return nil, fmt.Errorf("parse from date: %w", err)
	}
	if days <= 0 {
		days = 7
	}

	buckets := s.sched.Grid().Sample(s.sched.WeekViewInterval())

	view := &WeekView{Slots: buckets}
	for d := 0; d < days; d++ {
		view.Dates = append(view.Dates, start.AddDate(0, 0, d).Format(time.DateOnly))
	}

	for _, rid := range resourceIDs {
		row := WeekRow{ResourceID: rid, Cells: make([][]*scheduling.Appointment, len(view.Dates))}
		for di, date := range view.Dates {
			cells, err := s.weekCells(ctx, rid, date, buckets)
			if err != nil {
				return nil, err
			}
			row.Cells[di] = cells
		}
		view.Rows = append(view.Rows, row)
	}
	return view, nil
}

func (s *Service) weekCells(ctx context.Context, resourceID uuid.UUID, date string, buckets []timegrid.Slot) ([]*scheduling.Appointment, error) {
	occ := s.sched.Occupancy(resourceID, date)
	cells := make([]*scheduling.Appointment, len(buckets))

	starts := make([]time.Duration, 0, len(occ))
	for start := range occ {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	for bi, bucket := range buckets {
		for _, start := range starts {
			if start < bucket.Start || start >= bucket.Start+bucket.Duration {
				continue
			}
			appt, err := s.repo.GetAppointmentByID(ctx, occ[start])
			if err != nil {
				return nil, fmt.Errorf("load appointment %s: %w", occ[start], err)
			}
			cells[bi] = appt
			break
		}
	}
	return cells, nil
}

// Search returns a lazy, restartable sequence of matching appointments,
// sorted by date then slot then creation time ascending. Each range over the
// sequence re-runs the query; no pagination state is held between calls.
func (s *Service) Search(ctx context.Context, f scheduling.Filter) iter.Seq[scheduling.Appointment] {
	return func(yield func(scheduling.Appointment) bool) {
		out, err := s.searchSorted(ctx, f)
		if err != nil {
			return
		}
		for _, a := range out {
			if !yield(a) {
				return
			}
		}
	}
}

// SearchAll materializes the search result.
func (s *Service) SearchAll(ctx context.Context, f scheduling.Filter) ([]scheduling.Appointment, error) {
	return s.searchSorted(ctx, f)
}

func (s *Service) searchSorted(ctx context.Context, f scheduling.Filter) ([]scheduling.Appointment, error) {
	out, err := s.repo.SearchAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("search appointments: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Slot.Start != out[j].Slot.Start {
			return out[i].Slot.Start < out[j].Slot.Start
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
