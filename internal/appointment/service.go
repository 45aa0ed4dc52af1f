package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/vetbook/internal/directory"
	redisclient "github.com/vetdesk/vetbook/internal/redis"
	"github.com/vetdesk/vetbook/internal/schedule"
)

const (
	EventBooked      = "APPOINTMENT_BOOKED"
	EventRescheduled = "APPOINTMENT_RESCHEDULED"
	EventConfirmed   = "APPOINTMENT_CONFIRMED"
	EventStarted     = "APPOINTMENT_STARTED"
	EventCompleted   = "APPOINTMENT_COMPLETED"
	EventCancelled   = "APPOINTMENT_CANCELLED"
)

var (
	// ErrSlotUnavailable: the requested window is not in the generated
	// set (provider off, no such slot, or manually blocked). Distinct
	// from ErrSlotTaken so callers can show "no slots this day" instead
	// of prompting a retry.
	ErrSlotUnavailable = errors.New("slot is not available for booking")

	// ErrSlotContended: another request holds the slot lock right now.
	ErrSlotContended = errors.New("slot is currently being booked, please retry")

	ErrIllegalTransition = errors.New("invalid appointment status transition")
	ErrUnauthorized      = errors.New("requestor may not act on this appointment")
	ErrInvalidWindow     = errors.New("appointment window must satisfy start < end")
)

// SlotSource looks up materialized slots; satisfied by the schedule
// repository.
type SlotSource interface {
	GetSlot(ctx context.Context, providerID uuid.UUID, date time.Time, start schedule.TimeOfDay) (*schedule.TimeSlot, error)
}

// Directory resolves providers and pets; read-only collaborator.
type Directory interface {
	GetProvider(ctx context.Context, id uuid.UUID) (*directory.Provider, error)
	GetPet(ctx context.Context, id uuid.UUID) (*directory.Pet, error)
}

// Service is the booking engine: the single atomic check-and-write path
// for creating, rescheduling, and transitioning appointments. The
// availability index's separate reads are advisory; only the operations
// here decide who gets a slot.
type Service struct {
	repo      Repository
	slots     SlotSource
	directory Directory
	locker    redisclient.Locker
}

func NewService(repo Repository, slots SlotSource, dir Directory, locker redisclient.Locker) *Service {
	return &Service{
		repo:      repo,
		slots:     slots,
		directory: dir,
		locker:    locker,
	}
}

// BookParams identifies the slot and the parties for a new booking. End
// is taken from the materialized slot, not the caller.
type BookParams struct {
	ProviderID uuid.UUID
	PetID      uuid.UUID
	OwnerID    uuid.UUID
	Date       time.Time
	Start      schedule.TimeOfDay
	Reason     string
}

// Book reserves a slot. The availability re-check and the insert run
// under a per-slot lock, and the insert itself carries the partial
// unique index, so two concurrent requests for the same slot resolve to
// exactly one Appointment and one ErrSlotTaken.
func (s *Service) Book(ctx context.Context, p BookParams) (*Appointment, error) {
	provider, err := s.directory.GetProvider(ctx, p.ProviderID)
	if err != nil {
		if errors.Is(err, directory.ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	pet, err := s.directory.GetPet(ctx, p.PetID)
	if err != nil {
		if errors.Is(err, directory.ErrPetNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load pet: %w", err)
	}
	if pet.OwnerID != p.OwnerID {
		return nil, ErrUnauthorized
	}

	slot, err := s.bookableSlot(ctx, p.ProviderID, p.Date, p.Start)
	if err != nil {
		return nil, err
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, s.slotKey(p.ProviderID, p.Date, p.Start), func(lockCtx context.Context) error {
		taken, err := s.repo.AnyOverlapping(lockCtx, p.ProviderID, p.Date, slot.Start, slot.End, uuid.Nil)
		if err != nil {
			return fmt.Errorf("check overlapping appointments: %w", err)
		}
		if taken {
			return ErrSlotTaken
		}

		appt, err := s.repo.Create(lockCtx, &Appointment{
			PetID:      p.PetID,
			OwnerID:    p.OwnerID,
			ProviderID: p.ProviderID,
			ClinicID:   provider.ClinicID,
			Date:       schedule.DateOnly(p.Date),
			Start:      slot.Start,
			End:        slot.End,
			Reason:     p.Reason,
		})
		if err != nil {
			return err
		}

		created = appt
		s.logEvent(lockCtx, appt.ID, EventBooked, map[string]any{
			"provider_id": p.ProviderID.String(),
			"date":        schedule.FormatDate(appt.Date),
			"start":       appt.Start.String(),
		})
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		return nil, err
	}

	return created, nil
}

// Reschedule atomically moves an appointment to a new slot, appending
// the reason to its notes and resetting status to scheduled. Moving to
// the current slot is an idempotent no-op. The old slot frees itself:
// availability is derived from appointment rows, so no release step
// exists.
func (s *Service) Reschedule(ctx context.Context, id, requestorID uuid.UUID, newDate time.Time, newStart schedule.TimeOfDay, reason string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if requestorID != appt.OwnerID && requestorID != appt.ProviderID {
		return nil, ErrUnauthorized
	}
	if !appt.Status.Reschedulable() {
		return nil, ErrIllegalTransition
	}

	newDate = schedule.DateOnly(newDate)
	if appt.Date.Equal(newDate) && appt.Start == newStart {
		return appt, nil
	}

	slot, err := s.bookableSlot(ctx, appt.ProviderID, newDate, newStart)
	if err != nil {
		return nil, err
	}

	var moved *Appointment

	err = s.locker.WithSlotLock(ctx, s.slotKey(appt.ProviderID, newDate, newStart), func(lockCtx context.Context) error {
		taken, err := s.repo.AnyOverlapping(lockCtx, appt.ProviderID, newDate, slot.Start, slot.End, appt.ID)
		if err != nil {
			return fmt.Errorf("check overlapping appointments: %w", err)
		}
		if taken {
			return ErrSlotTaken
		}

		note := fmt.Sprintf("Rescheduled from %s %s to %s %s", schedule.FormatDate(appt.Date), appt.Start, schedule.FormatDate(newDate), slot.Start)
		if reason != "" {
			note += ": " + reason
		}

		updated, err := s.repo.UpdateSchedule(lockCtx, appt.ID, Reschedule{
			Date:  newDate,
			Start: slot.Start,
			End:   slot.End,
			Note:  note,
		})
		if err != nil {
			if errors.Is(err, ErrStatusChanged) {
				return ErrIllegalTransition
			}
			return err
		}

		moved = updated
		s.logEvent(lockCtx, appt.ID, EventRescheduled, map[string]any{
			"from_date":  schedule.FormatDate(appt.Date),
			"from_start": appt.Start.String(),
			"to_date":    schedule.FormatDate(newDate),
			"to_start":   slot.Start.String(),
			"reason":     reason,
		})
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		return nil, err
	}

	return moved, nil
}

// Cancel moves an appointment to cancelled. The owner or the assigned
// provider may cancel; cancellation frees the slot with no further
// bookkeeping because availability is computed from non-cancelled rows.
func (s *Service) Cancel(ctx context.Context, id, requestorID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if requestorID != appt.OwnerID && requestorID != appt.ProviderID {
		return nil, ErrUnauthorized
	}
	if !CanTransition(appt.Status, StatusCancelled) {
		return nil, ErrIllegalTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, StatusCancelled, StatusScheduled, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, ErrIllegalTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, id, EventCancelled, map[string]any{"requestor_id": requestorID.String()})
	return updated, nil
}

// Confirm is the provider-only scheduled -> confirmed transition.
func (s *Service) Confirm(ctx context.Context, id, providerID uuid.UUID) (*Appointment, error) {
	return s.providerTransition(ctx, id, providerID, StatusConfirmed, EventConfirmed, StatusScheduled)
}

// Start is the provider-only confirmed -> in_progress transition.
func (s *Service) Start(ctx context.Context, id, providerID uuid.UUID) (*Appointment, error) {
	return s.providerTransition(ctx, id, providerID, StatusInProgress, EventStarted, StatusConfirmed)
}

func (s *Service) providerTransition(ctx context.Context, id, providerID uuid.UUID, to Status, event string, from ...Status) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if providerID != appt.ProviderID {
		return nil, ErrUnauthorized
	}
	if !CanTransition(appt.Status, to) {
		return nil, ErrIllegalTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, to, from...)
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, ErrIllegalTransition
		}
		return nil, fmt.Errorf("transition appointment to %s: %w", to, err)
	}

	s.logEvent(ctx, id, event, map[string]any{})
	return updated, nil
}

// Complete is the provider-only transition to completed, legal from
// confirmed or in_progress, recording visit notes, prescription, and
// cost.
func (s *Service) Complete(ctx context.Context, id, providerID uuid.UUID, params CompleteParams) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if providerID != appt.ProviderID {
		return nil, ErrUnauthorized
	}
	if !CanTransition(appt.Status, StatusCompleted) {
		return nil, ErrIllegalTransition
	}

	updated, err := s.repo.Complete(ctx, id, params)
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, ErrIllegalTransition
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	s.logEvent(ctx, id, EventCompleted, map[string]any{})
	return updated, nil
}

// Get retrieves an appointment by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// History returns an appointment's status history, oldest first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]Event, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, id)
}

// ListByOwner retrieves an owner's appointments, newest first.
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByOwner(ctx, ownerID, limit, offset)
}

// ListByProvider retrieves a provider's appointments for one date.
func (s *Service) ListByProvider(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error) {
	return s.repo.ListByProvider(ctx, providerID, date)
}

// bookableSlot resolves the materialized slot for the window, mapping a
// missing or blocked slot to ErrSlotUnavailable.
func (s *Service) bookableSlot(ctx context.Context, providerID uuid.UUID, date time.Time, start schedule.TimeOfDay) (*schedule.TimeSlot, error) {
	slot, err := s.slots.GetSlot(ctx, providerID, date, start)
	if err != nil {
		if errors.Is(err, schedule.ErrSlotNotFound) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("load slot: %w", err)
	}
	if slot.Blocked {
		return nil, ErrSlotUnavailable
	}
	if slot.Start >= slot.End {
		return nil, ErrInvalidWindow
	}
	return slot, nil
}

func (s *Service) slotKey(providerID uuid.UUID, date time.Time, start schedule.TimeOfDay) string {
	return redisclient.SlotKey(providerID, schedule.DateOnly(date), start.String())
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	ev := Event{
		AppointmentID: appointmentID,
		EventType:     eventType,
		Payload:       data,
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
