package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrWeekNotFound      = errors.New("weekly schedule not found")
	ErrExceptionNotFound = errors.New("schedule exception not found")
	ErrSlotNotFound      = errors.New("time slot not found")
)

// DaySlots is one date's full replacement set of materialized slots.
type DaySlots struct {
	Date  time.Time
	Slots []TimeSlot
}

// Repository contains all schedule, exception, and slot persistence.
//
// SaveWeek, SaveException, and DeleteException each run their schedule
// write and the accompanying slot replacement in one transaction, so a
// rolled-back schedule edit can never leave its slots behind.
// ReplaceDaySlots covers one date in its own transaction for the
// horizon worker's per-date retry semantics.
type Repository interface {
	GetWeek(ctx context.Context, providerID uuid.UUID) (*WeekSchedule, error)
	SaveWeek(ctx context.Context, week *WeekSchedule, regenerated []DaySlots) error

	GetException(ctx context.Context, providerID uuid.UUID, date time.Time) (*Exception, error)
	ListExceptions(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Exception, error)
	SaveException(ctx context.Context, exc *Exception, regenerated DaySlots) error
	DeleteException(ctx context.Context, providerID uuid.UUID, date time.Time, regenerated DaySlots) error

	ReplaceDaySlots(ctx context.Context, providerID uuid.UUID, day DaySlots) error
	ListDaySlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]TimeSlot, error)
	GetSlot(ctx context.Context, providerID uuid.UUID, date time.Time, start TimeOfDay) (*TimeSlot, error)
	SetSlotBlocked(ctx context.Context, providerID uuid.UUID, date time.Time, start TimeOfDay, blocked bool) error

	ListProviderIDs(ctx context.Context) ([]uuid.UUID, error)
}
