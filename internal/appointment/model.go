package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/vetbook/internal/schedule"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Appointment is one booked visit. At most one non-cancelled row may
// exist per (provider, date, start time); the partial unique index
// uq_appointment_slot enforces that in the store.
type Appointment struct {
	ID           uuid.UUID
	PetID        uuid.UUID
	OwnerID      uuid.UUID
	ProviderID   uuid.UUID
	ClinicID     uuid.UUID
	Date         time.Time
	Start        schedule.TimeOfDay
	End          schedule.TimeOfDay
	Reason       string
	Notes        *string
	Prescription *string
	Cost         *float64
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Event is one entry in an appointment's status history.
type Event struct {
	ID            int64
	AppointmentID uuid.UUID
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// Occupies reports whether the appointment holds this exact provider
// slot while in a non-cancelled status.
func (a *Appointment) Occupies(providerID uuid.UUID, date time.Time, start schedule.TimeOfDay) bool {
	return a.Status != StatusCancelled &&
		a.ProviderID == providerID &&
		a.Date.Equal(schedule.DateOnly(date)) &&
		a.Start == start
}
