package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/vetbook/internal/schedule"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotTaken           = errors.New("slot already has a non-cancelled appointment")
	ErrStatusChanged       = errors.New("appointment status changed concurrently")
)

// Reschedule carries the atomic slot move applied by UpdateSchedule.
type Reschedule struct {
	Date  time.Time
	Start schedule.TimeOfDay
	End   schedule.TimeOfDay
	Note  string
}

// CompleteParams carries the optional outcome fields recorded when a
// visit finishes.
type CompleteParams struct {
	Notes        *string
	Prescription *string
	Cost         *float64
}

// Repository contains all DB interactions needed by the booking engine.
//
// Create and UpdateSchedule must surface a violation of the
// uq_appointment_slot partial unique index as ErrSlotTaken: that
// constraint, not any lock, is what guarantees exactly one of two
// concurrent writers for the same slot commits.
type Repository interface {
	Create(ctx context.Context, appt *Appointment) (*Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateStatus applies a conditional status change and returns
	// ErrStatusChanged when the row is no longer in any of the from
	// statuses.
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status, from ...Status) (*Appointment, error)

	// UpdateSchedule atomically moves a scheduled or confirmed
	// appointment to a new slot, appends the note, and resets status
	// to scheduled.
	UpdateSchedule(ctx context.Context, id uuid.UUID, move Reschedule) (*Appointment, error)

	// Complete finishes a confirmed or in-progress visit, recording
	// the outcome fields.
	Complete(ctx context.Context, id uuid.UUID, params CompleteParams) (*Appointment, error)

	// ListForDay returns every non-cancelled appointment for the
	// provider on the date, ordered by start time. The availability
	// index overlays these onto generated slots.
	ListForDay(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error)

	// AnyOverlapping reports whether any non-cancelled appointment for
	// the provider intersects [start, end) on the date, excluding the
	// given appointment ID (uuid.Nil to exclude nothing).
	AnyOverlapping(ctx context.Context, providerID uuid.UUID, date time.Time, start, end schedule.TimeOfDay, excludeID uuid.UUID) (bool, error)

	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error)

	// Status history
	InsertEvent(ctx context.Context, ev Event) error
	ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]Event, error)
}
