package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/vetbook/internal/appointment"
	"github.com/vetdesk/vetbook/internal/schedule"
)

// SlotSource reads a provider's materialized slots for a date.
type SlotSource interface {
	ListDaySlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]schedule.TimeSlot, error)
}

// AppointmentSource reads the non-cancelled appointments occupying a
// provider's day.
type AppointmentSource interface {
	ListForDay(ctx context.Context, providerID uuid.UUID, date time.Time) ([]appointment.Appointment, error)
}

// Service is the availability index: generated slots overlaid with
// booked state on every read. Nothing here is cached, so a cancelled
// appointment frees its slot with no invalidation step, and a
// rolled-back schedule edit can never leak into results.
type Service struct {
	slots SlotSource
	appts AppointmentSource
}

func NewService(slots SlotSource, appts AppointmentSource) *Service {
	return &Service{slots: slots, appts: appts}
}

// ListDay returns every materialized slot for the provider's date with
// blocked and booked state filled in, ordered by start time.
func (s *Service) ListDay(ctx context.Context, providerID uuid.UUID, date time.Time) ([]schedule.TimeSlot, error) {
	slots, err := s.slots.ListDaySlots(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	if len(slots) == 0 {
		return nil, nil
	}

	appts, err := s.appts.ListForDay(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	for i := range slots {
		for j := range appts {
			if schedule.Overlaps(slots[i].Start, slots[i].End, appts[j].Start, appts[j].End) {
				id := appts[j].ID
				slots[i].Booked = true
				slots[i].AppointmentID = &id
				break
			}
		}
	}
	return slots, nil
}

// ListAvailable returns only the slots currently free for booking.
func (s *Service) ListAvailable(ctx context.Context, providerID uuid.UUID, date time.Time) ([]schedule.TimeSlot, error) {
	slots, err := s.ListDay(ctx, providerID, date)
	if err != nil {
		return nil, err
	}

	free := slots[:0]
	for _, slot := range slots {
		if slot.Available() {
			free = append(free, slot)
		}
	}
	return free, nil
}

// IsAvailable reports whether [start, end) is a generated, unblocked
// slot with no overlapping non-cancelled appointment. Advisory only:
// the booking engine repeats this check inside its critical section.
func (s *Service) IsAvailable(ctx context.Context, providerID uuid.UUID, date time.Time, start, end schedule.TimeOfDay) (bool, error) {
	slots, err := s.ListDay(ctx, providerID, date)
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		if slot.Start == start && slot.End == end {
			return slot.Available(), nil
		}
	}
	return false, nil
}
