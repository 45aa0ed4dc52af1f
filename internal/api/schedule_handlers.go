package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vetdesk/vetbook/internal/availability"
	"github.com/vetdesk/vetbook/internal/schedule"
)

type scheduleHandlers struct {
	schedules *schedule.Service
	avail     *availability.Service
}

func (h *scheduleHandlers) getWeek(w http.ResponseWriter, r *http.Request) {
	providerID, ok := parseUUIDParam(w, chi.URLParam(r, "providerID"), "provider_id")
	if !ok {
		return
	}

	week, err := h.schedules.Week(r.Context(), providerID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekResponse(week))
}

func (h *scheduleHandlers) putWeek(w http.ResponseWriter, r *http.Request) {
	providerID, ok := parseUUIDParam(w, chi.URLParam(r, "providerID"), "provider_id")
	if !ok {
		return
	}
	requestor, ok := requestorID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing_requestor", "X-Requestor-ID header must be a valid UUID")
		return
	}

	var in schedule.WeekInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	week, err := h.schedules.UpdateWeek(r.Context(), providerID, requestor, in)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekResponse(week))
}

func (h *scheduleHandlers) listExceptions(w http.ResponseWriter, r *http.Request) {
	providerID, ok := parseUUIDParam(w, chi.URLParam(r, "providerID"), "provider_id")
	if !ok {
		return
	}

	from := schedule.DateOnly(time.Now())
	to := from.AddDate(0, 0, 90)
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := schedule.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		from = d
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := schedule.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		to = d
	}

	excs, err := h.schedules.Exceptions(r.Context(), providerID, from, to)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	resp := make([]ExceptionResponse, 0, len(excs))
	for i := range excs {
		resp = append(resp, toExceptionResponse(&excs[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *scheduleHandlers) putException(w http.ResponseWriter, r *http.Request) {
	providerID, date, requestor, ok := h.exceptionParams(w, r)
	if !ok {
		return
	}

	var in schedule.ExceptionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	exc, err := h.schedules.SetException(r.Context(), providerID, requestor, date, in)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExceptionResponse(exc))
}

func (h *scheduleHandlers) deleteException(w http.ResponseWriter, r *http.Request) {
	providerID, date, requestor, ok := h.exceptionParams(w, r)
	if !ok {
		return
	}

	if err := h.schedules.RemoveException(r.Context(), providerID, requestor, date); err != nil {
		handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *scheduleHandlers) exceptionParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, time.Time, uuid.UUID, bool) {
	providerID, ok := parseUUIDParam(w, chi.URLParam(r, "providerID"), "provider_id")
	if !ok {
		return uuid.Nil, time.Time{}, uuid.Nil, false
	}
	date, err := schedule.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return uuid.Nil, time.Time{}, uuid.Nil, false
	}
	requestor, ok := requestorID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing_requestor", "X-Requestor-ID header must be a valid UUID")
		return uuid.Nil, time.Time{}, uuid.Nil, false
	}
	return providerID, date, requestor, true
}

func (h *scheduleHandlers) listSlots(w http.ResponseWriter, r *http.Request) {
	providerID, ok := parseUUIDParam(w, chi.URLParam(r, "providerID"), "provider_id")
	if !ok {
		return
	}
	date, err := schedule.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}

	var slots []schedule.TimeSlot
	if r.URL.Query().Get("all") == "true" {
		slots, err = h.avail.ListDay(r.Context(), providerID, date)
	} else {
		slots, err = h.avail.ListAvailable(r.Context(), providerID, date)
	}
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotResponses(slots))
}

func (h *scheduleHandlers) setSlotBlocked(blocked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, date, requestor, ok := h.exceptionParams(w, r)
		if !ok {
			return
		}
		start, err := schedule.ParseTimeOfDay(chi.URLParam(r, "start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", err.Error())
			return
		}

		var opErr error
		if blocked {
			opErr = h.schedules.BlockSlot(r.Context(), providerID, requestor, date, start)
		} else {
			opErr = h.schedules.UnblockSlot(r.Context(), providerID, requestor, date, start)
		}
		if opErr != nil {
			handleDomainError(w, opErr)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
