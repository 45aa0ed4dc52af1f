package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/vetbook/internal/appointment"
	"github.com/vetdesk/vetbook/internal/directory"
	"github.com/vetdesk/vetbook/internal/schedule"
)

var (
	ErrNotSessionOwner  = errors.New("requestor does not own this booking session")
	ErrStepOutOfOrder   = errors.New("earlier wizard steps are still incomplete")
	ErrPastDate         = errors.New("booking date must not be in the past")
	ErrPastTime         = errors.New("booking time must not be in the past")
	ErrTimeNotAvailable = errors.New("chosen time is no longer available")
	ErrPetNotOwned      = errors.New("pet does not belong to this owner")
	ErrReasonRequired   = errors.New("a visit reason is required")
)

// Availability is the advisory read surface the wizard uses before the
// final commit.
type Availability interface {
	ListAvailable(ctx context.Context, providerID uuid.UUID, date time.Time) ([]schedule.TimeSlot, error)
}

// Booker is the single commit path into the booking engine.
type Booker interface {
	Book(ctx context.Context, p appointment.BookParams) (*appointment.Appointment, error)
}

// PetSource resolves pets for the ownership check on the pet step.
type PetSource interface {
	GetPet(ctx context.Context, id uuid.UUID) (*directory.Pet, error)
}

// Service drives the consumer booking wizard: pet, date, time, reason,
// then one Book call at confirm. Past dates and times are rejected here
// at the workflow boundary so the engine stays a pure availability
// arbiter. A Conflict at confirm clears the time step instead of
// killing the session, matching the "refresh and re-pick" contract.
type Service struct {
	store Store
	avail Availability
	book  Booker
	pets  PetSource
	now   func() time.Time
}

func NewService(store Store, avail Availability, book Booker, pets PetSource) *Service {
	return &Service{
		store: store,
		avail: avail,
		book:  book,
		pets:  pets,
		now:   time.Now,
	}
}

// StartSession opens a wizard for one owner booking with one provider.
func (s *Service) StartSession(ctx context.Context, ownerID, providerID uuid.UUID) (*Session, error) {
	session := &Session{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		ProviderID: providerID,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get loads a session after verifying the requestor owns it.
func (s *Service) Get(ctx context.Context, sessionID, ownerID uuid.UUID) (*Session, error) {
	return s.load(ctx, sessionID, ownerID)
}

// ChoosePet records the pet step. Redoing it clears every later step.
func (s *Service) ChoosePet(ctx context.Context, sessionID, ownerID, petID uuid.UUID) (*Session, error) {
	session, err := s.load(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}

	pet, err := s.pets.GetPet(ctx, petID)
	if err != nil {
		return nil, err
	}
	if pet.OwnerID != ownerID {
		return nil, ErrPetNotOwned
	}

	session.PetID = &petID
	session.Date = nil
	session.Start = nil
	session.Reason = ""
	return session, s.store.Save(ctx, session)
}

// ChooseDate records the date step; the date must be today or later.
func (s *Service) ChooseDate(ctx context.Context, sessionID, ownerID uuid.UUID, date time.Time) (*Session, error) {
	session, err := s.load(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if !session.reached(StepDate) {
		return nil, ErrStepOutOfOrder
	}

	date = schedule.DateOnly(date)
	if date.Before(schedule.DateOnly(s.now())) {
		return nil, ErrPastDate
	}

	session.Date = &date
	session.Start = nil
	return session, s.store.Save(ctx, session)
}

// ChooseTime records the time step against current availability. The
// check is advisory; the engine re-validates at confirm.
func (s *Service) ChooseTime(ctx context.Context, sessionID, ownerID uuid.UUID, start schedule.TimeOfDay) (*Session, error) {
	session, err := s.load(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if !session.reached(StepTime) {
		return nil, ErrStepOutOfOrder
	}

	now := s.now()
	if session.Date.Equal(schedule.DateOnly(now)) && !start.At(now).After(now) {
		return nil, ErrPastTime
	}

	free, err := s.avail.ListAvailable(ctx, session.ProviderID, *session.Date)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	found := false
	for _, slot := range free {
		if slot.Start == start {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrTimeNotAvailable
	}

	session.Start = &start
	return session, s.store.Save(ctx, session)
}

// SetReason records the visit reason.
func (s *Service) SetReason(ctx context.Context, sessionID, ownerID uuid.UUID, reason string) (*Session, error) {
	session, err := s.load(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if !session.reached(StepReason) {
		return nil, ErrStepOutOfOrder
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	session.Reason = reason
	return session, s.store.Save(ctx, session)
}

// Confirm commits the wizard through the booking engine. On a slot
// conflict the chosen time is cleared and the session kept so the
// caller can re-pick; on success the session is gone.
func (s *Service) Confirm(ctx context.Context, sessionID, ownerID uuid.UUID) (*appointment.Appointment, error) {
	session, err := s.load(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if session.Next() != StepConfirm {
		return nil, ErrStepOutOfOrder
	}

	appt, err := s.book.Book(ctx, appointment.BookParams{
		ProviderID: session.ProviderID,
		PetID:      *session.PetID,
		OwnerID:    session.OwnerID,
		Date:       *session.Date,
		Start:      *session.Start,
		Reason:     session.Reason,
	})
	if err != nil {
		if errors.Is(err, appointment.ErrSlotTaken) ||
			errors.Is(err, appointment.ErrSlotContended) ||
			errors.Is(err, appointment.ErrSlotUnavailable) {
			session.Start = nil
			if saveErr := s.store.Save(ctx, session); saveErr != nil {
				return nil, saveErr
			}
		}
		return nil, err
	}

	if err := s.store.Delete(ctx, session.ID); err != nil {
		// The appointment is booked; a leftover session only wastes a key.
		return appt, nil
	}
	return appt, nil
}

func (s *Service) load(ctx context.Context, sessionID, ownerID uuid.UUID) (*Session, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != ownerID {
		return nil, ErrNotSessionOwner
	}
	return session, nil
}
