package schedule

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DayInput is the wire form of one weekday's hours. Times travel as
// "HH:MM" strings and are only converted to TimeOfDay once validated.
type DayInput struct {
	Working      bool    `json:"is_working"`
	Start        string  `json:"start_time" validate:"required_if=Working true,omitempty,timeofday"`
	End          string  `json:"end_time" validate:"required_if=Working true,omitempty,timeofday"`
	BreakStart   *string `json:"break_start,omitempty" validate:"omitempty,timeofday"`
	BreakEnd     *string `json:"break_end,omitempty" validate:"omitempty,timeofday"`
	SlotDuration int     `json:"slot_duration" validate:"required_if=Working true,omitempty,slotduration"`
}

// WeekInput is the wire form of a full weekly schedule, Sunday first.
type WeekInput struct {
	Days [DaysPerWeek]DayInput `json:"days" validate:"dive"`
}

// ExceptionInput is the wire form of a date override.
type ExceptionInput struct {
	Type  ExceptionType `json:"exception_type" validate:"required,oneof=closed custom_hours"`
	Hours *DayInput     `json:"hours,omitempty" validate:"required_if=Type custom_hours"`
	Notes string        `json:"notes" validate:"max=500"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Validator checks schedule inputs before they reach the store.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Registration only fails for a blank tag or nil fn.
	_ = v.RegisterValidation("timeofday", func(fl validator.FieldLevel) bool {
		_, err := ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("slotduration", func(fl validator.FieldLevel) bool {
		return ValidSlotDuration(int(fl.Field().Int()))
	})

	return &Validator{validate: v}
}

// ValidateWeek checks format and ordering for every day and returns the
// parsed domain schedule when clean.
func (v *Validator) ValidateWeek(in WeekInput) ([DaysPerWeek]DaySchedule, error) {
	var days [DaysPerWeek]DaySchedule
	var errs ValidationErrors

	if err := v.validate.Struct(in); err != nil {
		return days, translate(err)
	}

	for wd := Sunday; wd <= Saturday; wd++ {
		day, dayErrs := parseDay(in.Days[wd], fmt.Sprintf("days[%d]", wd))
		errs = append(errs, dayErrs...)
		days[wd] = day
	}

	if len(errs) > 0 {
		return days, errs
	}
	return days, nil
}

// ValidateException checks a date override and returns the domain form.
func (v *Validator) ValidateException(in ExceptionInput) (ExceptionType, *DaySchedule, error) {
	if err := v.validate.Struct(in); err != nil {
		return "", nil, translate(err)
	}

	if in.Type == ExceptionClosed {
		return ExceptionClosed, nil, nil
	}

	hours := *in.Hours
	hours.Working = true
	day, errs := parseDay(hours, "hours")
	if len(errs) > 0 {
		return "", nil, errs
	}
	return ExceptionCustomHours, &day, nil
}

// parseDay converts one validated DayInput and enforces the ordering
// invariants: start < end, break ordered and contained in the window.
func parseDay(in DayInput, field string) (DaySchedule, ValidationErrors) {
	if !in.Working {
		return DaySchedule{}, nil
	}

	var errs ValidationErrors
	day := DaySchedule{Working: true, SlotDuration: in.SlotDuration}

	day.Start, day.End = mustTime(in.Start), mustTime(in.End)
	if day.Start >= day.End {
		errs = append(errs, ValidationError{Field: field, Message: "start_time must be before end_time"})
	}

	if (in.BreakStart == nil) != (in.BreakEnd == nil) {
		errs = append(errs, ValidationError{Field: field, Message: "break_start and break_end must be set together"})
	}
	if in.BreakStart != nil && in.BreakEnd != nil {
		bs, be := mustTime(*in.BreakStart), mustTime(*in.BreakEnd)
		day.BreakStart, day.BreakEnd = &bs, &be
		if bs >= be {
			errs = append(errs, ValidationError{Field: field, Message: "break_start must be before break_end"})
		} else if bs < day.Start || be > day.End {
			errs = append(errs, ValidationError{Field: field, Message: "break must fall inside working hours"})
		}
	}

	return day, errs
}

// mustTime assumes the timeofday tag already ran.
func mustTime(s string) TimeOfDay {
	t, _ := ParseTimeOfDay(s)
	return t
}

func translate(err error) error {
	invalid, ok := err.(validator.ValidationErrors)
	if !ok {
		return ValidationErrors{{Field: "", Message: err.Error()}}
	}
	var errs ValidationErrors
	for _, fe := range invalid {
		errs = append(errs, ValidationError{
			Field:   fe.Namespace(),
			Message: fmt.Sprintf("failed %q validation", fe.Tag()),
		})
	}
	return errs
}
