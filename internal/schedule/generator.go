package schedule

import (
	"time"

	"github.com/google/uuid"
)

// EffectiveDay resolves which working pattern governs a provider's date:
// an exception for that exact date wins, otherwise the weekly entry for
// the date's weekday. ok is false when the provider is off that day.
func EffectiveDay(week WeekSchedule, exc *Exception, date time.Time) (DaySchedule, bool) {
	if exc != nil {
		if exc.Type == ExceptionClosed || exc.Hours == nil {
			return DaySchedule{}, false
		}
		day := *exc.Hours
		day.Working = true
		return day, true
	}
	day := week.Day(WeekdayOf(date))
	if !day.Working {
		return DaySchedule{}, false
	}
	return day, true
}

// BuildDaySlots partitions a day's working window into consecutive
// slot-duration windows. A window that intersects the break interval at
// all is dropped whole; partial slots are never emitted. The result is a
// disjoint, sorted tiling of [Start,End) minus the break.
func BuildDaySlots(providerID uuid.UUID, date time.Time, day DaySchedule) []TimeSlot {
	if !day.Working || day.SlotDuration <= 0 || day.Start >= day.End {
		return nil
	}

	var slots []TimeSlot
	for start := day.Start; start.Add(day.SlotDuration) <= day.End; start = start.Add(day.SlotDuration) {
		end := start.Add(day.SlotDuration)
		if day.HasBreak() && Overlaps(start, end, *day.BreakStart, *day.BreakEnd) {
			continue
		}
		slots = append(slots, TimeSlot{
			ProviderID: providerID,
			Date:       DateOnly(date),
			Start:      start,
			End:        end,
		})
	}
	return slots
}

// GenerateSlots materializes candidate slots for every date in
// [from, to], inclusive. exceptions is keyed by DateOnly. The function
// is pure: regeneration for a date fully replaces whatever was there.
func GenerateSlots(week WeekSchedule, exceptions map[time.Time]*Exception, from, to time.Time) []TimeSlot {
	var out []TimeSlot
	for date := DateOnly(from); !date.After(DateOnly(to)); date = date.AddDate(0, 0, 1) {
		day, ok := EffectiveDay(week, exceptions[date], date)
		if !ok {
			continue
		}
		out = append(out, BuildDaySlots(week.ProviderID, date, day)...)
	}
	return out
}
