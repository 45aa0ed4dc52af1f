package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/vetdesk/vetbook/internal/appointment"
	"github.com/vetdesk/vetbook/internal/directory"
	"github.com/vetdesk/vetbook/internal/schedule"
	"github.com/vetdesk/vetbook/internal/workflow"
)

// requestorID reads the authenticated caller's ID. Authentication
// itself lives in front of this service; the engine only needs an
// explicit requestor for its authorization checks.
func requestorID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.Header.Get("X-Requestor-ID"))
	return id, err == nil
}

func parseUUIDParam(w http.ResponseWriter, raw, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// handleDomainError maps sentinel errors from every layer onto the
// taxonomy the API exposes: validation 400, unauthorized 403, not-found
// 404, not-available 422, conflict 409.
func handleDomainError(w http.ResponseWriter, err error) {
	var verrs schedule.ValidationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, struct {
			Error  string                     `json:"error"`
			Fields []schedule.ValidationError `json:"fields"`
		}{Error: "validation_error", Fields: verrs})
		return
	}

	switch {
	case errors.Is(err, schedule.ErrBadTimeOfDay),
		errors.Is(err, appointment.ErrInvalidWindow),
		errors.Is(err, workflow.ErrPastDate),
		errors.Is(err, workflow.ErrPastTime),
		errors.Is(err, workflow.ErrReasonRequired),
		errors.Is(err, workflow.ErrStepOutOfOrder):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())

	case errors.Is(err, schedule.ErrUnauthorized),
		errors.Is(err, appointment.ErrUnauthorized),
		errors.Is(err, workflow.ErrNotSessionOwner),
		errors.Is(err, workflow.ErrPetNotOwned):
		writeError(w, http.StatusForbidden, "unauthorized", err.Error())

	case errors.Is(err, directory.ErrProviderNotFound),
		errors.Is(err, directory.ErrOwnerNotFound),
		errors.Is(err, directory.ErrPetNotFound),
		errors.Is(err, appointment.ErrAppointmentNotFound),
		errors.Is(err, schedule.ErrExceptionNotFound),
		errors.Is(err, schedule.ErrSlotNotFound),
		errors.Is(err, workflow.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, appointment.ErrSlotUnavailable),
		errors.Is(err, workflow.ErrTimeNotAvailable):
		writeError(w, http.StatusUnprocessableEntity, "slot_not_available", err.Error())

	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())

	case errors.Is(err, appointment.ErrSlotContended):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")

	case errors.Is(err, appointment.ErrIllegalTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
