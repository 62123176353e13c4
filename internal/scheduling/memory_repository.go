package scheduling

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is the in-process Repository used when no Postgres DSN is
// configured, and by tests. All returned records are copies.
type MemoryRepository struct {
	mu           sync.RWMutex
	resources    map[uuid.UUID]Resource
	appointments map[uuid.UUID]Appointment
	events       []EventLog
	nextEventID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		resources:    make(map[uuid.UUID]Resource),
		appointments: make(map[uuid.UUID]Appointment),
		nextEventID:  1,
	}
}

// PutResource loads a directory entry. The directory is refreshed
// out-of-band; this core never creates or removes resources on its own.
func (r *MemoryRepository) PutResource(res Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[res.ID] = res
}

func (r *MemoryRepository) GetResourceByID(_ context.Context, id uuid.UUID) (*Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[id]
	if !ok {
		return nil, ErrResourceNotFound
	}
	return &res, nil
}

func (r *MemoryRepository) ListResources(_ context.Context) ([]Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Resource, 0, len(r.resources))
	for _, res := range r.resources {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) InsertAppointment(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, ErrStaleAppointment
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) CommitReschedule(_ context.Context, origID uuid.UUID, origFrom Status, successor *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	orig, ok := r.appointments[origID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if orig.Status != origFrom {
		return nil, ErrStaleAppointment
	}
	link := successor.ID
	orig.Status = StatusRescheduled
	orig.RescheduledTo = &link
	orig.UpdatedAt = time.Now()
	r.appointments[origID] = orig
	r.appointments[successor.ID] = *successor
	return &orig, nil
}

func (r *MemoryRepository) ListActive(_ context.Context) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if IsActive(a.Status) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemoryRepository) SearchAppointments(_ context.Context, f Filter) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if matches(a, f) {
			out = append(out, a)
		}
	}
	return out, nil
}

func matches(a Appointment, f Filter) bool {
	if f.ResourceID != uuid.Nil && a.ResourceID != f.ResourceID {
		return false
	}
	if f.Date != "" && a.Date != f.Date {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.SubjectContains != "" && !strings.Contains(a.SubjectID.String(), strings.ToLower(f.SubjectContains)) {
		return false
	}
	return true
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = r.nextEventID
	r.nextEventID++
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded event log, oldest first.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}
