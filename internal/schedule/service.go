package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/vetbook/internal/config"
)

var ErrUnauthorized = errors.New("requestor may not modify this provider's schedule")

// Service owns schedule and exception writes and keeps the materialized
// slot table in step with them. Every write regenerates the affected
// dates inside the same transaction as the schedule mutation, so read
// paths never observe slots from an abandoned edit.
type Service struct {
	repo      Repository
	validator *Validator
	cfg       config.Config
	now       func() time.Time
}

func NewService(repo Repository, validator *Validator, cfg config.Config) *Service {
	return &Service{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Week returns the provider's weekly schedule. A provider who has never
// saved one gets the implicit default: all days off.
func (s *Service) Week(ctx context.Context, providerID uuid.UUID) (*WeekSchedule, error) {
	week, err := s.repo.GetWeek(ctx, providerID)
	if errors.Is(err, ErrWeekNotFound) {
		return &WeekSchedule{ProviderID: providerID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load weekly schedule: %w", err)
	}
	return week, nil
}

// UpdateWeek validates and stores a new weekly schedule, regenerating
// slots for the whole booking horizon atomically with the write.
func (s *Service) UpdateWeek(ctx context.Context, providerID, requestorID uuid.UUID, in WeekInput) (*WeekSchedule, error) {
	if requestorID != providerID {
		return nil, ErrUnauthorized
	}

	days, err := s.validator.ValidateWeek(in)
	if err != nil {
		return nil, err
	}

	week := &WeekSchedule{ProviderID: providerID, Days: days}

	regenerated, err := s.buildHorizon(ctx, week, nil)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SaveWeek(ctx, week, regenerated); err != nil {
		return nil, fmt.Errorf("save weekly schedule: %w", err)
	}
	return week, nil
}

// Exceptions lists a provider's date overrides inside [from, to].
func (s *Service) Exceptions(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Exception, error) {
	excs, err := s.repo.ListExceptions(ctx, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	return excs, nil
}

// SetException creates or replaces the override for one date and
// regenerates that date's slots in the same transaction.
func (s *Service) SetException(ctx context.Context, providerID, requestorID uuid.UUID, date time.Time, in ExceptionInput) (*Exception, error) {
	if requestorID != providerID {
		return nil, ErrUnauthorized
	}

	excType, hours, err := s.validator.ValidateException(in)
	if err != nil {
		return nil, err
	}

	exc := &Exception{
		ProviderID: providerID,
		Date:       DateOnly(date),
		Type:       excType,
		Hours:      hours,
		Notes:      in.Notes,
	}

	day, err := s.buildDay(ctx, providerID, exc.Date, exc, nil)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SaveException(ctx, exc, day); err != nil {
		return nil, fmt.Errorf("save exception: %w", err)
	}
	return exc, nil
}

// RemoveException deletes a date override; the date's slots fall back to
// the weekly schedule in the same transaction.
func (s *Service) RemoveException(ctx context.Context, providerID, requestorID uuid.UUID, date time.Time) error {
	if requestorID != providerID {
		return ErrUnauthorized
	}

	// Regenerated slots must reflect the weekly default, not the
	// exception being removed.
	none := &Exception{}
	day, err := s.buildDay(ctx, providerID, DateOnly(date), nil, none)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteException(ctx, providerID, DateOnly(date), day); err != nil {
		if errors.Is(err, ErrExceptionNotFound) {
			return err
		}
		return fmt.Errorf("delete exception: %w", err)
	}
	return nil
}

// BlockSlot manually blocks one generated slot. Blocked slots survive
// regeneration as long as the same start time still exists.
func (s *Service) BlockSlot(ctx context.Context, providerID, requestorID uuid.UUID, date time.Time, start TimeOfDay) error {
	return s.setBlocked(ctx, providerID, requestorID, date, start, true)
}

func (s *Service) UnblockSlot(ctx context.Context, providerID, requestorID uuid.UUID, date time.Time, start TimeOfDay) error {
	return s.setBlocked(ctx, providerID, requestorID, date, start, false)
}

func (s *Service) setBlocked(ctx context.Context, providerID, requestorID uuid.UUID, date time.Time, start TimeOfDay, blocked bool) error {
	if requestorID != providerID {
		return ErrUnauthorized
	}
	if err := s.repo.SetSlotBlocked(ctx, providerID, DateOnly(date), start, blocked); err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return err
		}
		return fmt.Errorf("set slot blocked=%t: %w", blocked, err)
	}
	return nil
}

// RegenerateRange rebuilds materialized slots for each date in
// [from, to], one date per transaction: a failure mid-range leaves
// earlier dates correct and later dates untouched, so callers can
// safely retry from the failing date.
func (s *Service) RegenerateRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) error {
	week, err := s.Week(ctx, providerID)
	if err != nil {
		return err
	}

	excs, err := s.repo.ListExceptions(ctx, providerID, from, to)
	if err != nil {
		return fmt.Errorf("list exceptions: %w", err)
	}
	byDate := exceptionsByDate(excs)

	for date := DateOnly(from); !date.After(DateOnly(to)); date = date.AddDate(0, 0, 1) {
		day, ok := EffectiveDay(*week, byDate[date], date)
		var slots []TimeSlot
		if ok {
			slots = BuildDaySlots(providerID, date, day)
		}
		if err := s.repo.ReplaceDaySlots(ctx, providerID, DaySlots{Date: date, Slots: slots}); err != nil {
			return fmt.Errorf("regenerate slots for %s: %w", FormatDate(date), err)
		}
	}
	return nil
}

// RegenerateHorizon rebuilds the rolling booking window, today through
// today+SlotHorizonDays.
func (s *Service) RegenerateHorizon(ctx context.Context, providerID uuid.UUID) error {
	from := DateOnly(s.now())
	return s.RegenerateRange(ctx, providerID, from, from.AddDate(0, 0, s.cfg.SlotHorizonDays))
}

// Providers lists every provider with a stored schedule, for the
// horizon refresher.
func (s *Service) Providers(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.ListProviderIDs(ctx)
}

// buildHorizon generates replacement slots for every date in the
// horizon against a candidate week that is not yet stored.
func (s *Service) buildHorizon(ctx context.Context, week *WeekSchedule, _ *Exception) ([]DaySlots, error) {
	from := DateOnly(s.now())
	to := from.AddDate(0, 0, s.cfg.SlotHorizonDays)

	excs, err := s.repo.ListExceptions(ctx, week.ProviderID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	byDate := exceptionsByDate(excs)

	var out []DaySlots
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		day, ok := EffectiveDay(*week, byDate[date], date)
		var slots []TimeSlot
		if ok {
			slots = BuildDaySlots(week.ProviderID, date, day)
		}
		out = append(out, DaySlots{Date: date, Slots: slots})
	}
	return out, nil
}

// buildDay generates one date's replacement slots against a candidate
// exception state: exc overrides the stored exception; passing
// ignore suppresses the stored exception entirely (delete path).
func (s *Service) buildDay(ctx context.Context, providerID uuid.UUID, date time.Time, exc, ignore *Exception) (DaySlots, error) {
	week, err := s.Week(ctx, providerID)
	if err != nil {
		return DaySlots{}, err
	}

	effective := exc
	if exc == nil && ignore == nil {
		stored, err := s.repo.GetException(ctx, providerID, date)
		if err != nil && !errors.Is(err, ErrExceptionNotFound) {
			return DaySlots{}, fmt.Errorf("load exception: %w", err)
		}
		effective = stored
	}

	day, ok := EffectiveDay(*week, effective, date)
	var slots []TimeSlot
	if ok {
		slots = BuildDaySlots(providerID, date, day)
	}
	return DaySlots{Date: date, Slots: slots}, nil
}

func exceptionsByDate(excs []Exception) map[time.Time]*Exception {
	byDate := make(map[time.Time]*Exception, len(excs))
	for i := range excs {
		byDate[DateOnly(excs[i].Date)] = &excs[i]
	}
	return byDate
}
