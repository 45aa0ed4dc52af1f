package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vetdesk/vetbook/internal/schedule"
	"github.com/vetdesk/vetbook/internal/workflow"
)

type workflowHandlers struct {
	wizard *workflow.Service
}

func (h *workflowHandlers) startSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	ownerID, ok := parseUUIDParam(w, req.OwnerID, "owner_id")
	if !ok {
		return
	}
	providerID, ok := parseUUIDParam(w, req.ProviderID, "provider_id")
	if !ok {
		return
	}

	session, err := h.wizard.StartSession(r.Context(), ownerID, providerID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *workflowHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID, requestor, ok := h.sessionParams(w, r)
	if !ok {
		return
	}

	session, err := h.wizard.Get(r.Context(), sessionID, requestor)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *workflowHandlers) step(stepName workflow.Step) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, requestor, ok := h.sessionParams(w, r)
		if !ok {
			return
		}

		var req SessionStepRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var (
			session *workflow.Session
			err     error
		)
		switch stepName {
		case workflow.StepPet:
			petID, ok := parseUUIDParam(w, req.PetID, "pet_id")
			if !ok {
				return
			}
			session, err = h.wizard.ChoosePet(r.Context(), sessionID, requestor, petID)
		case workflow.StepDate:
			date, perr := schedule.ParseDate(req.Date)
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", perr.Error())
				return
			}
			session, err = h.wizard.ChooseDate(r.Context(), sessionID, requestor, date)
		case workflow.StepTime:
			start, perr := schedule.ParseTimeOfDay(req.StartTime)
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid_start_time", perr.Error())
				return
			}
			session, err = h.wizard.ChooseTime(r.Context(), sessionID, requestor, start)
		case workflow.StepReason:
			session, err = h.wizard.SetReason(r.Context(), sessionID, requestor, req.Reason)
		default:
			writeError(w, http.StatusNotFound, "unknown_step", "no such wizard step")
			return
		}

		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(session))
	}
}

func (h *workflowHandlers) confirm(w http.ResponseWriter, r *http.Request) {
	sessionID, requestor, ok := h.sessionParams(w, r)
	if !ok {
		return
	}

	appt, err := h.wizard.Confirm(r.Context(), sessionID, requestor)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *workflowHandlers) sessionParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	sessionID, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "session_id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	requestor, ok := requestorID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing_requestor", "X-Requestor-ID header must be a valid UUID")
		return uuid.Nil, uuid.Nil, false
	}
	return sessionID, requestor, true
}
