package appointment

// transitions is the full appointment lifecycle:
//
//	scheduled -> confirmed -> in_progress -> completed
//	scheduled, confirmed  -> cancelled
//
// completed and cancelled are terminal. A reschedule resets a scheduled
// or confirmed appointment back to scheduled, which the table also
// encodes (scheduled -> scheduled covers the no-op reschedule).
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusScheduled, StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Reschedulable statuses may have their slot changed.
func (s Status) Reschedulable() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// Terminal statuses admit no further transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}
