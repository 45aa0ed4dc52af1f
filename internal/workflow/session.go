package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/vetbook/internal/schedule"
)

// Step names the next piece of input a wizard session needs.
type Step string

const (
	StepPet     Step = "pet"
	StepDate    Step = "date"
	StepTime    Step = "time"
	StepReason  Step = "reason"
	StepConfirm Step = "confirm"
)

// Session is one in-flight booking wizard. It accumulates choices step
// by step and only touches the booking engine at Confirm; until then
// every read is advisory. Sessions live in Redis under a TTL and
// disappear on confirm or expiry.
type Session struct {
	ID         uuid.UUID           `json:"id"`
	OwnerID    uuid.UUID           `json:"owner_id"`
	ProviderID uuid.UUID           `json:"provider_id"`
	PetID      *uuid.UUID          `json:"pet_id,omitempty"`
	Date       *time.Time          `json:"date,omitempty"`
	Start      *schedule.TimeOfDay `json:"start,omitempty"`
	Reason     string              `json:"reason,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Next reports the first step still missing input.
func (s *Session) Next() Step {
	switch {
	case s.PetID == nil:
		return StepPet
	case s.Date == nil:
		return StepDate
	case s.Start == nil:
		return StepTime
	case s.Reason == "":
		return StepReason
	default:
		return StepConfirm
	}
}

// reached reports whether the session has progressed far enough to
// accept input for the given step. Earlier steps may always be redone;
// redoing one clears everything after it.
func (s *Session) reached(step Step) bool {
	order := []Step{StepPet, StepDate, StepTime, StepReason, StepConfirm}
	for _, st := range order {
		if st == step {
			return true
		}
		if st == s.Next() {
			return false
		}
	}
	return false
}
