package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetdesk/vetbook/internal/schedule"
)

var apptCols = []string{
	"id", "pet_id", "owner_id", "provider_id", "clinic_id",
	"appt_date", "start_time", "end_time", "reason",
	"notes", "prescription", "cost", "status", "created_at", "updated_at",
}

func apptRow(id uuid.UUID, status Status) *pgxmock.Rows {
	now := time.Now()
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(apptCols).AddRow(
		id, uuid.New(), uuid.New(), uuid.New(), uuid.New(),
		date, pgTime(9*60), pgTime(9*60+30), "checkup",
		(*string)(nil), (*string)(nil), (*float64)(nil), status, now, now,
	)
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgRepositoryWithDB(mock)
}

func TestPgCreate(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("INSERT INTO appointment").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "checkup").
		WillReturnRows(apptRow(id, StatusScheduled))

	appt, err := repo.Create(context.Background(), &Appointment{
		PetID:      uuid.New(),
		OwnerID:    uuid.New(),
		ProviderID: uuid.New(),
		ClinicID:   uuid.New(),
		Date:       time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		Start:      9 * 60,
		End:        9*60 + 30,
		Reason:     "checkup",
	})
	require.NoError(t, err)
	assert.Equal(t, id, appt.ID)
	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Equal(t, "09:00", appt.Start.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateUniqueViolation(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO appointment").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_appointment_slot"})

	_, err := repo.Create(context.Background(), &Appointment{Reason: "checkup"})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM appointment").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(apptCols))

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateStatusGuarded(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("UPDATE appointment").
		WithArgs(id, StatusConfirmed, []string{"scheduled"}).
		WillReturnRows(apptRow(id, StatusConfirmed))

	appt, err := repo.UpdateStatus(context.Background(), id, StatusConfirmed, StatusScheduled)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, appt.Status)

	// No row matched: the status moved underneath us.
	mock.ExpectQuery("UPDATE appointment").
		WithArgs(id, StatusCancelled, []string{"scheduled", "confirmed"}).
		WillReturnRows(pgxmock.NewRows(apptCols))

	_, err = repo.UpdateStatus(context.Background(), id, StatusCancelled, StatusScheduled, StatusConfirmed)
	assert.ErrorIs(t, err, ErrStatusChanged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateScheduleSlotTaken(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("UPDATE appointment").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_appointment_slot"})

	_, err := repo.UpdateSchedule(context.Background(), id, Reschedule{
		Date:  time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC),
		Start: 10 * 60,
		End:   10*60 + 30,
		Note:  "moved",
	})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAnyOverlapping(t *testing.T) {
	mock, repo := newMockRepo(t)
	providerID := uuid.New()
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(providerID, date, pgTime(9*60), pgTime(9*60+30), uuid.Nil).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repo.AnyOverlapping(context.Background(), providerID, date, 9*60, 9*60+30, uuid.Nil)
	require.NoError(t, err)
	assert.True(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTimeRoundTrip(t *testing.T) {
	for _, tod := range []schedule.TimeOfDay{0, 9 * 60, 12*60 + 30, 23*60 + 59} {
		assert.Equal(t, tod, fromPGTime(pgTime(tod)))
	}
	assert.Equal(t, int64(9*60*60*1e6), pgTime(9*60).Microseconds)
	assert.True(t, pgTime(0).Valid)
}
