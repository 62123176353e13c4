// simulate drives concurrent Book/Cancel/Reschedule traffic against a
// running api-server and then checks from the outside that no (resource,
// date, slot) key ever ends up with more than one active appointment.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	BookingRatio    float64
	CancelRatio     float64
	RescheduleRatio float64
	Dates           []string
}

type resourceInfo struct {
	ID uuid.UUID `json:"id"`
}

type appointmentInfo struct {
	ID   uuid.UUID `json:"id"`
	Slot string    `json:"slot"`
	Date string    `json:"date"`
}

type dayViewInfo struct {
	Slots []string `json:"slots"`
	Rows  []struct {
		ResourceID uuid.UUID          `json:"resource_id"`
		Cells      []*appointmentInfo `json:"cells"`
	} `json:"rows"`
}

type DataPool struct {
	Resources []uuid.UUID
	Subjects  []uuid.UUID
	Slots     []string

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment() (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rand.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, p50, p95
}

type Metrics struct {
	Booking    OperationMetrics
	Cancel     OperationMetrics
	Reschedule OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	log.Printf("config: base_url=%s duration=%s workers=%d booking=%.2f cancel=%.2f reschedule=%.2f",
		cfg.APIBaseURL, cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.CancelRatio, cfg.RescheduleRatio)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	pool, err := sim.loadDataPool()
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	sim.pool = pool
	log.Printf("loaded: %d resources, %d slots per day", len(pool.Resources), len(pool.Slots))

	sim.Run()
	sim.PrintReport()

	if err := sim.VerifyInvariant(); err != nil {
		log.Fatalf("INVARIANT VIOLATED: %v", err)
	}
	log.Println("invariant holds: at most one active appointment per (resource, date, slot)")
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.6),
		CancelRatio:     getFloat("SIM_CANCEL_RATIO", 0.2),
		RescheduleRatio: getFloat("SIM_RESCHEDULE_RATIO", 0.2),
	}

	base := time.Now().AddDate(0, 0, 1)
	for d := 0; d < 5; d++ {
		cfg.Dates = append(cfg.Dates, base.AddDate(0, 0, d).Format(time.DateOnly))
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.RescheduleRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.RescheduleRatio /= total
	}
	return cfg
}

func (s *Simulator) loadDataPool() (*DataPool, error) {
	pool := &DataPool{}

	var resources []resourceInfo
	if err := s.getJSON("/resources", &resources); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	for _, r := range resources {
		pool.Resources = append(pool.Resources, r.ID)
	}
	if len(pool.Resources) == 0 {
		return nil, fmt.Errorf("no resources available, seed the directory first")
	}

	var view dayViewInfo
	if err := s.getJSON("/day-view?date="+s.config.Dates[0]+"&resource_ids="+pool.Resources[0].String(), &view); err != nil {
		return nil, fmt.Errorf("load slot grid: %w", err)
	}
	pool.Slots = view.Slots

	for i := 0; i < 200; i++ {
		pool.Subjects = append(pool.Subjects, uuid.New())
	}
	return pool, nil
}

func (s *Simulator) Run() {
	deadline := time.Now().Add(s.config.Duration)

	var wg sync.WaitGroup
	for w := 0; w < s.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				s.step()
			}
		}()
	}
	wg.Wait()
}

func (s *Simulator) step() {
	r := rand.Float64()
	switch {
	case r < s.config.BookingRatio:
		s.doBook()
	case r < s.config.BookingRatio+s.config.CancelRatio:
		s.doCancel()
	default:
		s.doReschedule()
	}
}

func (s *Simulator) randomTarget() (uuid.UUID, string, string) {
	return s.pool.Resources[rand.Intn(len(s.pool.Resources))],
		s.config.Dates[rand.Intn(len(s.config.Dates))],
		s.pool.Slots[rand.Intn(len(s.pool.Slots))]
}

func (s *Simulator) doBook() {
	resource, date, slot := s.randomTarget()
	body := map[string]string{
		"resource_id": resource.String(),
		"date":        date,
		"slot":        slot,
		"subject_id":  s.pool.Subjects[rand.Intn(len(s.pool.Subjects))].String(),
	}

	start := time.Now()
	status, respBody := s.postJSON("/appointments", body)
	latency := time.Since(start)

	switch status {
	case http.StatusCreated:
		s.metrics.Booking.Record(latency, true, false)
		var appt appointmentInfo
		if err := json.Unmarshal(respBody, &appt); err == nil {
			s.pool.AddAppointment(appt.ID)
		}
	case http.StatusConflict:
		s.metrics.Booking.Record(latency, false, true)
	default:
		s.metrics.Booking.Record(latency, false, false)
	}
}

func (s *Simulator) doCancel() {
	id, ok := s.pool.GetRandomAppointment()
	if !ok {
		s.doBook()
		return
	}

	start := time.Now()
	status, _ := s.postJSON("/appointments/"+id.String()+"/cancel", nil)
	latency := time.Since(start)

	// A 409 means the appointment already reached a terminal state.
	s.metrics.Cancel.Record(latency, status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doReschedule() {
	id, ok := s.pool.GetRandomAppointment()
	if !ok {
		s.doBook()
		return
	}
	resource, date, slot := s.randomTarget()

	start := time.Now()
	status, respBody := s.postJSON("/appointments/"+id.String()+"/reschedule", map[string]string{
		"resource_id": resource.String(),
		"date":        date,
		"slot":        slot,
	})
	latency := time.Since(start)

	switch status {
	case http.StatusCreated:
		s.metrics.Reschedule.Record(latency, true, false)
		var appt appointmentInfo
		if err := json.Unmarshal(respBody, &appt); err == nil {
			s.pool.AddAppointment(appt.ID)
		}
	case http.StatusConflict:
		s.metrics.Reschedule.Record(latency, false, true)
	default:
		s.metrics.Reschedule.Record(latency, false, false)
	}
}

// VerifyInvariant walks every (resource, date) day view and cross-checks the
// occupied cells against the search endpoint: each occupied slot must hold
// exactly one scheduled or confirmed appointment.
func (s *Simulator) VerifyInvariant() error {
	for _, date := range s.config.Dates {
		ids := make([]string, len(s.pool.Resources))
		for i, r := range s.pool.Resources {
			ids[i] = r.String()
		}

		var view dayViewInfo
		if err := s.getJSON("/day-view?date="+date+"&resource_ids="+strings.Join(ids, ","), &view); err != nil {
			return err
		}

		for _, row := range view.Rows {
			seen := map[string]bool{}
			for _, cell := range row.Cells {
				if cell == nil {
					continue
				}
				key := cell.Slot
				if seen[key] {
					return fmt.Errorf("resource %s date %s slot %s occupied twice", row.ResourceID, date, key)
				}
				seen[key] = true
			}
		}
	}
	return nil
}

func (s *Simulator) PrintReport() {
	report := func(name string, om *OperationMetrics) {
		avg, p50, p95 := om.Stats()
		log.Printf("%-10s total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s",
			name, om.Total, om.Success, om.Conflict, om.Error, avg, p50, p95)
	}
	report("book", &s.metrics.Booking)
	report("cancel", &s.metrics.Cancel)
	report("reschedule", &s.metrics.Reschedule)
}

// HTTP helpers

func (s *Simulator) getJSON(path string, out any) error {
	resp, err := s.client.Get(s.config.APIBaseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *Simulator) postJSON(path string, body any) (int, []byte) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, nil
		}
	}

	resp, err := s.client.Post(s.config.APIBaseURL+path, "application/json", &buf)
	if err != nil {
		return 0, nil
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

// Env helpers

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
