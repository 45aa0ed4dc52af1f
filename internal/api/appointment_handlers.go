package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vetdesk/vetbook/internal/appointment"
	"github.com/vetdesk/vetbook/internal/schedule"
)

type appointmentHandlers struct {
	engine *appointment.Service
}

func (h *appointmentHandlers) book(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	providerID, ok := parseUUIDParam(w, req.ProviderID, "provider_id")
	if !ok {
		return
	}
	petID, ok := parseUUIDParam(w, req.PetID, "pet_id")
	if !ok {
		return
	}
	ownerID, ok := parseUUIDParam(w, req.OwnerID, "owner_id")
	if !ok {
		return
	}
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}
	start, err := schedule.ParseTimeOfDay(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_time", err.Error())
		return
	}

	appt, err := h.engine.Book(r.Context(), appointment.BookParams{
		ProviderID: providerID,
		PetID:      petID,
		OwnerID:    ownerID,
		Date:       date,
		Start:      start,
		Reason:     req.Reason,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *appointmentHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "appointment_id")
	if !ok {
		return
	}

	appt, err := h.engine.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *appointmentHandlers) history(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "appointment_id")
	if !ok {
		return
	}

	events, err := h.engine.History(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	resp := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, EventResponse{
			EventType: ev.EventType,
			Payload:   ev.Payload,
			CreatedAt: ev.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *appointmentHandlers) reschedule(w http.ResponseWriter, r *http.Request) {
	id, requestor, ok := h.actionParams(w, r)
	if !ok {
		return
	}

	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}
	start, err := schedule.ParseTimeOfDay(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_time", err.Error())
		return
	}

	appt, err := h.engine.Reschedule(r.Context(), id, requestor, date, start, req.Reason)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *appointmentHandlers) cancel(w http.ResponseWriter, r *http.Request) {
	id, requestor, ok := h.actionParams(w, r)
	if !ok {
		return
	}

	appt, err := h.engine.Cancel(r.Context(), id, requestor)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *appointmentHandlers) confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Confirm)
}

func (h *appointmentHandlers) start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Start)
}

func (h *appointmentHandlers) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id, providerID uuid.UUID) (*appointment.Appointment, error)) {
	id, requestor, ok := h.actionParams(w, r)
	if !ok {
		return
	}

	appt, err := op(r.Context(), id, requestor)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *appointmentHandlers) complete(w http.ResponseWriter, r *http.Request) {
	id, requestor, ok := h.actionParams(w, r)
	if !ok {
		return
	}

	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	appt, err := h.engine.Complete(r.Context(), id, requestor, appointment.CompleteParams{
		Notes:        req.Notes,
		Prescription: req.Prescription,
		Cost:         req.Cost,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *appointmentHandlers) listByOwner(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := parseUUIDParam(w, r.URL.Query().Get("owner_id"), "owner_id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	appts, err := h.engine.ListByOwner(r.Context(), ownerID, limit, offset)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
}

func (h *appointmentHandlers) listByProvider(w http.ResponseWriter, r *http.Request) {
	providerID, ok := parseUUIDParam(w, chi.URLParam(r, "providerID"), "provider_id")
	if !ok {
		return
	}
	date, err := schedule.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}

	appts, err := h.engine.ListByProvider(r.Context(), providerID, date)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
}

func (h *appointmentHandlers) actionParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "appointment_id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	requestor, ok := requestorID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing_requestor", "X-Requestor-ID header must be a valid UUID")
		return uuid.Nil, uuid.Nil, false
	}
	return id, requestor, true
}

func toAppointmentResponses(appts []appointment.Appointment) []AppointmentResponse {
	resp := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		resp = append(resp, toAppointmentResponse(&appts[i]))
	}
	return resp
}
