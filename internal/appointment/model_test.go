package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestOccupies(t *testing.T) {
	provider := uuid.New()
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	appt := &Appointment{
		ProviderID: provider,
		Date:       date,
		Start:      9 * 60,
		Status:     StatusScheduled,
	}

	assert.True(t, appt.Occupies(provider, date, 9*60))
	// Timestamp inputs normalize to the calendar date.
	assert.True(t, appt.Occupies(provider, date.Add(15*time.Hour), 9*60))

	assert.False(t, appt.Occupies(uuid.New(), date, 9*60))
	assert.False(t, appt.Occupies(provider, date.AddDate(0, 0, 1), 9*60))
	assert.False(t, appt.Occupies(provider, date, 9*60+30))

	appt.Status = StatusCancelled
	assert.False(t, appt.Occupies(provider, date, 9*60))
}
