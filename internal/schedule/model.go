package schedule

import (
	"time"

	"github.com/google/uuid"
)

// SlotDurations is the set of slot lengths (minutes) a provider may pick.
var SlotDurations = []int{15, 20, 30, 45, 60}

func ValidSlotDuration(minutes int) bool {
	for _, d := range SlotDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

// DaySchedule is the working pattern for a single day: either a day off,
// or a working window with an optional break and a slot length.
type DaySchedule struct {
	Working      bool
	Start        TimeOfDay
	End          TimeOfDay
	BreakStart   *TimeOfDay
	BreakEnd     *TimeOfDay
	SlotDuration int // minutes
}

func (d DaySchedule) HasBreak() bool {
	return d.BreakStart != nil && d.BreakEnd != nil
}

// WeekSchedule is a provider's recurring weekly availability, one entry
// per weekday. A provider with no stored schedule gets the zero value,
// which reads as all days off.
type WeekSchedule struct {
	ProviderID uuid.UUID
	Days       [DaysPerWeek]DaySchedule
	UpdatedAt  time.Time
}

func (w WeekSchedule) Day(d Weekday) DaySchedule {
	return w.Days[d]
}

type ExceptionType string

const (
	ExceptionClosed      ExceptionType = "closed"
	ExceptionCustomHours ExceptionType = "custom_hours"
)

// Exception is a one-time override of the weekly schedule for a single
// provider+date. It always wins over the weekly entry for its date.
type Exception struct {
	ProviderID uuid.UUID
	Date       time.Time
	Type       ExceptionType
	Hours      *DaySchedule // set when Type is custom_hours
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TimeSlot is one bookable window materialized from a schedule. Booked
// and AppointmentID are derived on read by the availability index, never
// stored.
type TimeSlot struct {
	ProviderID    uuid.UUID
	Date          time.Time
	Start         TimeOfDay
	End           TimeOfDay
	Blocked       bool
	Booked        bool
	AppointmentID *uuid.UUID
}

func (s TimeSlot) Available() bool {
	return !s.Blocked && !s.Booked
}
