package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetdesk/vetbook/internal/appointment"
	"github.com/vetdesk/vetbook/internal/directory"
	"github.com/vetdesk/vetbook/internal/schedule"
	"github.com/vetdesk/vetbook/internal/workflow"
)

func TestHandleDomainError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{schedule.ErrBadTimeOfDay, http.StatusBadRequest, "validation_error"},
		{workflow.ErrPastDate, http.StatusBadRequest, "validation_error"},
		{workflow.ErrStepOutOfOrder, http.StatusBadRequest, "validation_error"},
		{schedule.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
		{appointment.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
		{workflow.ErrPetNotOwned, http.StatusForbidden, "unauthorized"},
		{directory.ErrProviderNotFound, http.StatusNotFound, "not_found"},
		{appointment.ErrAppointmentNotFound, http.StatusNotFound, "not_found"},
		{workflow.ErrSessionNotFound, http.StatusNotFound, "not_found"},
		{appointment.ErrSlotUnavailable, http.StatusUnprocessableEntity, "slot_not_available"},
		{workflow.ErrTimeNotAvailable, http.StatusUnprocessableEntity, "slot_not_available"},
		{appointment.ErrSlotTaken, http.StatusConflict, "slot_taken"},
		{appointment.ErrSlotContended, http.StatusConflict, "slot_being_booked"},
		{appointment.ErrIllegalTransition, http.StatusConflict, "invalid_status_transition"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode+"_"+tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleDomainError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantCode, resp.Error)
		})
	}
}

func TestHandleDomainErrorWrapped(t *testing.T) {
	rec := httptest.NewRecorder()
	handleDomainError(rec, errors.Join(errors.New("create appointment"), appointment.ErrSlotTaken))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleDomainErrorValidationFields(t *testing.T) {
	rec := httptest.NewRecorder()
	handleDomainError(rec, schedule.ValidationErrors{
		{Field: "days[1]", Message: "start_time must be before end_time"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error  string                     `json:"error"`
		Fields []schedule.ValidationError `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "validation_error", resp.Error)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "days[1]", resp.Fields[0].Field)
}

func TestRequestorID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := requestorID(r)
	assert.False(t, ok)

	want := uuid.New()
	r.Header.Set("X-Requestor-ID", want.String())
	got, ok := requestorID(r)
	require.True(t, ok)
	assert.Equal(t, want, got)

	r.Header.Set("X-Requestor-ID", "not-a-uuid")
	_, ok = requestorID(r)
	assert.False(t, ok)
}

func TestParseUUIDParam(t *testing.T) {
	rec := httptest.NewRecorder()
	want := uuid.New()
	got, ok := parseUUIDParam(rec, want.String(), "provider_id")
	require.True(t, ok)
	assert.Equal(t, want, got)

	rec = httptest.NewRecorder()
	_, ok = parseUUIDParam(rec, "nope", "provider_id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
