package scheduling

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Calendar is the per-resource occupancy index from (date, slot start) to
// the active appointment holding that key. Each calendar owns its map; the
// check-then-claim in Reserve is a single critical section so two concurrent
// reservations for the same key can never both succeed.
type Calendar struct {
	resourceID uuid.UUID

	mu        sync.Mutex
	occupancy map[string]map[time.Duration]uuid.UUID
}

func NewCalendar(resourceID uuid.UUID) *Calendar {
	return &Calendar{
		resourceID: resourceID,
		occupancy:  make(map[string]map[time.Duration]uuid.UUID),
	}
}

func (c *Calendar) ResourceID() uuid.UUID { return c.resourceID }

// Reserve atomically claims (date, slot start) for an appointment. A quota
// of zero or less means unlimited. The day-count check happens inside the
// same critical section as the claim so the quota cannot be raced past.
func (c *Calendar) Reserve(date string, start time.Duration, apptID uuid.UUID, quota int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	day := c.occupancy[date]
	if _, taken := day[start]; taken {
		return ErrConflict
	}
	if quota > 0 && len(day) >= quota {
		return ErrQuotaExceeded
	}
	if day == nil {
		day = make(map[time.Duration]uuid.UUID)
		c.occupancy[date] = day
	}
	day[start] = apptID
	return nil
}

// Release frees the key only while apptID still holds it. A release for a
// key that is free, or that has since been claimed by another appointment,
// is a no-op. That keeps cancellation idempotent and stops a stale caller
// from evicting a newer occupant.
func (c *Calendar) Release(date string, start time.Duration, apptID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	day, ok := c.occupancy[date]
	if !ok || day[start] != apptID {
		return
	}
	delete(day, start)
	if len(day) == 0 {
		delete(c.occupancy, date)
	}
}

// IsAvailable reports whether no active appointment occupies the key.
func (c *Calendar) IsAvailable(date string, start time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, taken := c.occupancy[date][start]
	return !taken
}

// Occupancy returns a copy of the occupied slots for a date.
func (c *Calendar) Occupancy(date string) map[time.Duration]uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()

	day := c.occupancy[date]
	out := make(map[time.Duration]uuid.UUID, len(day))
	for start, id := range day {
		out[start] = id
	}
	return out
}

// CountActive reports how many slots are held on a date.
func (c *Calendar) CountActive(date string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.occupancy[date])
}
