package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/vetbook/internal/appointment"
	"github.com/vetdesk/vetbook/internal/schedule"
	"github.com/vetdesk/vetbook/internal/workflow"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Schedules

type WeekScheduleResponse struct {
	ProviderID uuid.UUID                         `json:"provider_id"`
	Days       [schedule.DaysPerWeek]DayResponse `json:"days"`
}

type DayResponse struct {
	Weekday      string  `json:"weekday"`
	IsWorking    bool    `json:"is_working"`
	StartTime    string  `json:"start_time,omitempty"`
	EndTime      string  `json:"end_time,omitempty"`
	BreakStart   *string `json:"break_start,omitempty"`
	BreakEnd     *string `json:"break_end,omitempty"`
	SlotDuration int     `json:"slot_duration,omitempty"`
}

func toWeekResponse(week *schedule.WeekSchedule) WeekScheduleResponse {
	resp := WeekScheduleResponse{ProviderID: week.ProviderID}
	for wd := schedule.Sunday; wd <= schedule.Saturday; wd++ {
		day := week.Days[wd]
		out := DayResponse{Weekday: wd.String(), IsWorking: day.Working}
		if day.Working {
			out.StartTime = day.Start.String()
			out.EndTime = day.End.String()
			out.SlotDuration = day.SlotDuration
			if day.HasBreak() {
				bs, be := day.BreakStart.String(), day.BreakEnd.String()
				out.BreakStart, out.BreakEnd = &bs, &be
			}
		}
		resp.Days[wd] = out
	}
	return resp
}

type ExceptionResponse struct {
	ProviderID uuid.UUID              `json:"provider_id"`
	Date       string                 `json:"date"`
	Type       schedule.ExceptionType `json:"exception_type"`
	Hours      *DayResponse           `json:"hours,omitempty"`
	Notes      string                 `json:"notes,omitempty"`
}

func toExceptionResponse(exc *schedule.Exception) ExceptionResponse {
	resp := ExceptionResponse{
		ProviderID: exc.ProviderID,
		Date:       schedule.FormatDate(exc.Date),
		Type:       exc.Type,
		Notes:      exc.Notes,
	}
	if exc.Hours != nil {
		day := DayResponse{
			IsWorking:    true,
			StartTime:    exc.Hours.Start.String(),
			EndTime:      exc.Hours.End.String(),
			SlotDuration: exc.Hours.SlotDuration,
		}
		if exc.Hours.HasBreak() {
			bs, be := exc.Hours.BreakStart.String(), exc.Hours.BreakEnd.String()
			day.BreakStart, day.BreakEnd = &bs, &be
		}
		resp.Hours = &day
	}
	return resp
}

// Slots

type SlotResponse struct {
	ProviderID    uuid.UUID  `json:"provider_id"`
	Date          string     `json:"date"`
	StartTime     string     `json:"start_time"`
	EndTime       string     `json:"end_time"`
	IsAvailable   bool       `json:"is_available"`
	IsBooked      bool       `json:"is_booked"`
	IsBlocked     bool       `json:"is_blocked"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

func toSlotResponses(slots []schedule.TimeSlot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{
			ProviderID:    s.ProviderID,
			Date:          schedule.FormatDate(s.Date),
			StartTime:     s.Start.String(),
			EndTime:       s.End.String(),
			IsAvailable:   s.Available(),
			IsBooked:      s.Booked,
			IsBlocked:     s.Blocked,
			AppointmentID: s.AppointmentID,
		})
	}
	return out
}

// Appointments

type BookRequest struct {
	ProviderID string `json:"provider_id"`
	PetID      string `json:"pet_id"`
	OwnerID    string `json:"owner_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	Reason     string `json:"reason"`
}

type RescheduleRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	Reason    string `json:"reason,omitempty"`
}

type CompleteRequest struct {
	Notes        *string  `json:"notes,omitempty"`
	Prescription *string  `json:"prescription,omitempty"`
	Cost         *float64 `json:"cost,omitempty"`
}

type AppointmentResponse struct {
	ID           uuid.UUID `json:"id"`
	PetID        uuid.UUID `json:"pet_id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	ProviderID   uuid.UUID `json:"provider_id"`
	ClinicID     uuid.UUID `json:"clinic_id"`
	Date         string    `json:"date"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	Reason       string    `json:"reason"`
	Notes        *string   `json:"notes,omitempty"`
	Prescription *string   `json:"prescription,omitempty"`
	Cost         *float64  `json:"cost,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		PetID:        a.PetID,
		OwnerID:      a.OwnerID,
		ProviderID:   a.ProviderID,
		ClinicID:     a.ClinicID,
		Date:         schedule.FormatDate(a.Date),
		StartTime:    a.Start.String(),
		EndTime:      a.End.String(),
		Reason:       a.Reason,
		Notes:        a.Notes,
		Prescription: a.Prescription,
		Cost:         a.Cost,
		Status:       string(a.Status),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

type EventResponse struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Booking wizard

type StartSessionRequest struct {
	OwnerID    string `json:"owner_id"`
	ProviderID string `json:"provider_id"`
}

type SessionStepRequest struct {
	PetID     string `json:"pet_id,omitempty"`
	Date      string `json:"date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type SessionResponse struct {
	ID         uuid.UUID  `json:"id"`
	OwnerID    uuid.UUID  `json:"owner_id"`
	ProviderID uuid.UUID  `json:"provider_id"`
	PetID      *uuid.UUID `json:"pet_id,omitempty"`
	Date       *string    `json:"date,omitempty"`
	StartTime  *string    `json:"start_time,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	NextStep   string     `json:"next_step"`
}

func toSessionResponse(s *workflow.Session) SessionResponse {
	resp := SessionResponse{
		ID:         s.ID,
		OwnerID:    s.OwnerID,
		ProviderID: s.ProviderID,
		PetID:      s.PetID,
		Reason:     s.Reason,
		NextStep:   string(s.Next()),
	}
	if s.Date != nil {
		d := schedule.FormatDate(*s.Date)
		resp.Date = &d
	}
	if s.Start != nil {
		t := s.Start.String()
		resp.StartTime = &t
	}
	return resp
}
