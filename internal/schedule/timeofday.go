package schedule

import (
	"errors"
	"fmt"
	"time"
)

// TimeOfDay is a clock time expressed as minutes since midnight.
// Slot arithmetic stays in plain integers so no timezone or DST
// handling leaks into the generator.
type TimeOfDay int

var ErrBadTimeOfDay = errors.New("time of day must be HH:MM between 00:00 and 23:59")

// ParseTimeOfDay parses a 24h "HH:MM" string. All four clock
// positions must be digits; anything looser would let a typo like
// "12:3x" through as 12:03.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, ErrBadTimeOfDay
	}
	for _, i := range [...]int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrBadTimeOfDay
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, ErrBadTimeOfDay
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Add returns the time of day the given number of minutes later.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

// At anchors the time of day onto a calendar date in that date's location.
func (t TimeOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location())
}

// Overlaps reports whether the half-open intervals [aStart,aEnd) and
// [bStart,bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

// Weekday indexes days Sunday=0 through Saturday=6, matching the
// weekly_schedule.day_of_week column and time.Weekday.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

const DaysPerWeek = 7

func WeekdayOf(date time.Time) Weekday {
	return Weekday(date.Weekday())
}

func (d Weekday) String() string {
	return time.Weekday(d).String()
}

// DateOnly truncates a timestamp to midnight UTC. All slot and
// appointment dates are stored this way so date equality is byte
// equality.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "YYYY-MM-DD" calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return DateOnly(d), nil
}

func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
