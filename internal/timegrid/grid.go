// Package timegrid derives the bookable slot grid for a service day from
// operating-hour bounds and a slot granularity. Slots are computed, never
// stored; two calls with the same inputs always yield the same grid.
package timegrid

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyRange     = errors.New("opening time must be before closing time")
	ErrBadGranularity = errors.New("slot granularity must be positive")
	ErrBadClock       = errors.New("clock time must be HH:MM")
)

// Slot is a fixed-length interval within a service day, identified by its
// start offset from midnight.
type Slot struct {
	Start    time.Duration
	Duration time.Duration
}

// String renders the slot start as wall-clock HH:MM, the wire form used by
// the API and by occupancy keys.
func (s Slot) String() string {
	h := int(s.Start / time.Hour)
	m := int((s.Start % time.Hour) / time.Minute)
	return fmt.Sprintf("%02d:%02d", h, m)
}

// At anchors the slot on a calendar date.
func (s Slot) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location()).Add(s.Start)
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(v string) (time.Duration, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, v)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Grid is the ordered set of slots for one service-day configuration.
type Grid struct {
	slots   []Slot
	byStart map[time.Duration]Slot
}

// Generate builds the slot grid between opening and closing ("HH:MM"),
// stepped by granularity. Slots are contiguous, non-overlapping and ordered.
// If granularity does not evenly divide the interval, the trailing partial
// slot is dropped rather than rounded.
func Generate(opening, closing string, granularity time.Duration) (Grid, error) {
	if granularity <= 0 {
		return Grid{}, ErrBadGranularity
	}

	openAt, err := ParseClock(opening)
	if err != nil {
		return Grid{}, fmt.Errorf("opening time: %w", err)
	}
	closeAt, err := ParseClock(closing)
	if err != nil {
		return Grid{}, fmt.Errorf("closing time: %w", err)
	}
	if openAt >= closeAt {
		return Grid{}, fmt.Errorf("%w: %s >= %s", ErrEmptyRange, opening, closing)
	}

	g := Grid{byStart: make(map[time.Duration]Slot)}
	for start := openAt; start+granularity <= closeAt; start += granularity {
		s := Slot{Start: start, Duration: granularity}
		g.slots = append(g.slots, s)
		g.byStart[start] = s
	}
	return g, nil
}

// Slots returns the ordered slots. The caller gets its own copy.
func (g Grid) Slots() []Slot {
	out := make([]Slot, len(g.slots))
	copy(out, g.slots)
	return out
}

// Len reports the number of slots in the grid.
func (g Grid) Len() int { return len(g.slots) }

// Lookup returns the grid slot starting at the given offset, if any.
func (g Grid) Lookup(start time.Duration) (Slot, bool) {
	s, ok := g.byStart[start]
	return s, ok
}

// Contains reports whether a slot starting at the given offset is part of
// the grid.
func (g Grid) Contains(start time.Duration) bool {
	_, ok := g.byStart[start]
	return ok
}

// Sample returns a coarser grid for week-at-a-glance views: the first slot
// of each interval-sized bucket, with the bucket width as its duration.
// An interval at or below the native granularity returns the full grid.
func (g Grid) Sample(interval time.Duration) []Slot {
	if len(g.slots) == 0 {
		return nil
	}
	if interval <= g.slots[0].Duration {
		return g.Slots()
	}

	var out []Slot
	nextBucket := g.slots[0].Start
	for _, s := range g.slots {
		if s.Start >= nextBucket {
			out = append(out, Slot{Start: s.Start, Duration: interval})
			nextBucket = s.Start + interval
		}
	}
	return out
}
