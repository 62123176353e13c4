package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/citymed/scheduling-core/internal/query"
	"github.com/citymed/scheduling-core/internal/scheduling"
	"github.com/citymed/scheduling-core/internal/timegrid"
)

func bookAppointmentHandler(svc *scheduling.Service, m *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		resourceID, err := uuid.Parse(req.ResourceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_resource_id", "resource_id must be a valid UUID")
			return
		}
		subjectID, err := uuid.Parse(req.SubjectID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_subject_id", "subject_id must be a valid UUID")
			return
		}
		if _, err := time.Parse(time.DateOnly, req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		slotStart, err := timegrid.ParseClock(req.Slot)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_format", "slot must be HH:MM")
			return
		}
		priority, ok := scheduling.ParsePriority(req.Priority)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_priority", "priority must be normal, urgent or emergency")
			return
		}

		appt, err := svc.Book(r.Context(), scheduling.BookRequest{
			ResourceID:     resourceID,
			Date:           req.Date,
			SlotStart:      slotStart,
			SubjectID:      subjectID,
			Priority:       priority,
			Note:           req.Note,
			IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
		})
		if err != nil {
			m.ObserveBooking("book", "rejected")
			writeSchedulingError(w, err)
			return
		}

		m.ObserveBooking("book", "accepted")
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *scheduling.Service, m *Metrics) http.HandlerFunc {
	return transitionHandler(m, "cancel", func(ctx context.Context, id uuid.UUID, _ *http.Request) (*scheduling.Appointment, error) {
		return svc.Cancel(ctx, id)
	})
}

func confirmAppointmentHandler(svc *scheduling.Service, m *Metrics) http.HandlerFunc {
	return transitionHandler(m, "confirm", func(ctx context.Context, id uuid.UUID, _ *http.Request) (*scheduling.Appointment, error) {
		return svc.Confirm(ctx, id)
	})
}

func completeAppointmentHandler(svc *scheduling.Service, m *Metrics) http.HandlerFunc {
	return transitionHandler(m, "complete", func(ctx context.Context, id uuid.UUID, _ *http.Request) (*scheduling.Appointment, error) {
		return svc.Complete(ctx, id)
	})
}

func transitionHandler(m *Metrics, op string, fn func(ctx context.Context, id uuid.UUID, r *http.Request) (*scheduling.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := fn(r.Context(), id, r)
		if err != nil {
			m.ObserveBooking(op, "rejected")
			writeSchedulingError(w, err)
			return
		}

		m.ObserveBooking(op, "accepted")
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc *scheduling.Service, m *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		resourceID, err := uuid.Parse(req.ResourceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_resource_id", "resource_id must be a valid UUID")
			return
		}
		if _, err := time.Parse(time.DateOnly, req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		slotStart, err := timegrid.ParseClock(req.Slot)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_format", "slot must be HH:MM")
			return
		}

		appt, err := svc.Reschedule(r.Context(), scheduling.RescheduleRequest{
			AppointmentID:  id,
			NewResourceID:  resourceID,
			NewDate:        req.Date,
			NewSlotStart:   slotStart,
			IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
		})
		if err != nil {
			m.ObserveBooking("reschedule", "rejected")
			writeSchedulingError(w, err)
			return
		}

		m.ObserveBooking("reschedule", "accepted")
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func searchAppointmentsHandler(q *query.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := scheduling.Filter{
			SubjectContains: r.URL.Query().Get("subject_contains"),
			Date:            r.URL.Query().Get("date"),
			Status:          scheduling.Status(r.URL.Query().Get("status")),
		}
		if v := r.URL.Query().Get("resource_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_resource_id", "resource_id must be a valid UUID")
				return
			}
			f.ResourceID = id
		}

		appts, err := q.SearchAll(r.Context(), f)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func dayViewHandler(q *query.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		resourceIDs, err := parseResourceIDs(r.URL.Query().Get("resource_ids"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_resource_ids", "resource_ids must be comma-separated UUIDs")
			return
		}

		view, err := q.DayView(r.Context(), resourceIDs, date)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		resp := DayViewResponse{Date: view.Date, Slots: slotStrings(view.Slots)}
		for _, row := range view.Rows {
			resp.Rows = append(resp.Rows, DayRowResponse{
				ResourceID: row.ResourceID,
				Cells:      cellResponses(row.Cells),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func weekViewHandler(q *query.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from := r.URL.Query().Get("from")
		if _, err := time.Parse(time.DateOnly, from); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
			return
		}
		resourceIDs, err := parseResourceIDs(r.URL.Query().Get("resource_ids"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_resource_ids", "resource_ids must be comma-separated UUIDs")
			return
		}
		days := 7
		if v := r.URL.Query().Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 31 {
				writeError(w, http.StatusBadRequest, "invalid_days", "days must be between 1 and 31")
				return
			}
			days = n
		}

		view, err := q.WeekView(r.Context(), resourceIDs, from, days)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		resp := WeekViewResponse{Dates: view.Dates, Slots: slotStrings(view.Slots)}
		for _, row := range view.Rows {
			cells := make([][]*AppointmentResponse, len(row.Cells))
			for i, day := range row.Cells {
				cells[i] = cellResponses(day)
			}
			resp.Rows = append(resp.Rows, WeekRowResponse{ResourceID: row.ResourceID, Cells: cells})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listResourcesHandler(repo scheduling.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resources, err := repo.ListResources(r.Context())
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		out := make([]ResourceResponse, 0, len(resources))
		for _, res := range resources {
			out = append(out, ResourceResponse{ID: res.ID, Name: res.Name, Specialty: res.Specialty})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// idempotencyKey prefers the header over the body field.
func idempotencyKey(r *http.Request, bodyKey string) string {
	if k := r.Header.Get("Idempotency-Key"); k != "" {
		return k
	}
	return bodyKey
}

func parseResourceIDs(raw string) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func slotStrings(slots []timegrid.Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}

func cellResponses(cells []*scheduling.Appointment) []*AppointmentResponse {
	out := make([]*AppointmentResponse, len(cells))
	for i, a := range cells {
		if a == nil {
			continue
		}
		resp := toAppointmentResponse(a)
		out[i] = &resp
	}
	return out
}
