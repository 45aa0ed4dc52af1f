package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetdesk/vetbook/internal/schedule"
)

// DB is the slice of pgxpool.Pool the repository uses; pgxmock
// satisfies it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db DB
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: pool}
}

// NewPgRepositoryWithDB allows injecting mocks for tests.
func NewPgRepositoryWithDB(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const apptColumns = `id, pet_id, owner_id, provider_id, clinic_id, appt_date, start_time, end_time, reason, notes, prescription, cost, status, created_at, updated_at`

func pgTime(t schedule.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * 60 * 1e6, Valid: true}
}

func fromPGTime(pt pgtype.Time) schedule.TimeOfDay {
	return schedule.TimeOfDay(pt.Microseconds / (60 * 1e6))
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a          Appointment
		start, end pgtype.Time
	)
	err := row.Scan(
		&a.ID,
		&a.PetID,
		&a.OwnerID,
		&a.ProviderID,
		&a.ClinicID,
		&a.Date,
		&start,
		&end,
		&a.Reason,
		&a.Notes,
		&a.Prescription,
		&a.Cost,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.Date = schedule.DateOnly(a.Date)
	a.Start = fromPGTime(start)
	a.End = fromPGTime(end)
	return &a, nil
}

// slotTaken maps a violation of the partial unique index on
// (provider_id, appt_date, start_time) WHERE status <> 'cancelled' to
// the domain error. This is the losing side of a booking race.
func slotTaken(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uq_appointment_slot"
}

func (r *PgRepository) Create(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointment
			(id, pet_id, owner_id, provider_id, clinic_id, appt_date, start_time, end_time, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'scheduled', now(), now())
		RETURNING `+apptColumns+`
	`, id, appt.PetID, appt.OwnerID, appt.ProviderID, appt.ClinicID,
		schedule.DateOnly(appt.Date), pgTime(appt.Start), pgTime(appt.End), appt.Reason)

	created, err := scanAppointment(row)
	if err != nil {
		if slotTaken(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointment
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, from ...Status) (*Appointment, error) {
	fromList := make([]string, len(from))
	for i, s := range from {
		fromList[i] = string(s)
	}

	row := r.db.QueryRow(ctx, `
		UPDATE appointment
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+apptColumns+`
	`, id, to, fromList)

	appt, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStatusChanged
	}
	return appt, err
}

func (r *PgRepository) UpdateSchedule(ctx context.Context, id uuid.UUID, move Reschedule) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointment
		SET appt_date = $2,
		    start_time = $3,
		    end_time = $4,
		    notes = CASE WHEN $5 = '' THEN notes ELSE concat_ws(E'\n', notes, $5) END,
		    status = 'scheduled',
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('scheduled', 'confirmed')
		RETURNING `+apptColumns+`
	`, id, schedule.DateOnly(move.Date), pgTime(move.Start), pgTime(move.End), move.Note)

	appt, err := scanAppointment(row)
	if err != nil {
		if slotTaken(err) {
			return nil, ErrSlotTaken
		}
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrStatusChanged
		}
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) Complete(ctx context.Context, id uuid.UUID, params CompleteParams) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointment
		SET status = 'completed',
		    notes = COALESCE($2, notes),
		    prescription = COALESCE($3, prescription),
		    cost = COALESCE($4, cost),
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('confirmed', 'in_progress')
		RETURNING `+apptColumns+`
	`, id, params.Notes, params.Prescription, params.Cost)

	appt, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStatusChanged
	}
	return appt, err
}

func (r *PgRepository) ListForDay(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointment
		WHERE provider_id = $1
		  AND appt_date = $2
		  AND status <> 'cancelled'
		ORDER BY start_time
	`, providerID, schedule.DateOnly(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) AnyOverlapping(ctx context.Context, providerID uuid.UUID, date time.Time, start, end schedule.TimeOfDay, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment
			WHERE provider_id = $1
			  AND appt_date = $2
			  AND status <> 'cancelled'
			  AND start_time < $4
			  AND $3 < end_time
			  AND id <> $5
		)
	`, providerID, schedule.DateOnly(date), pgTime(start), pgTime(end), excludeID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointment
		WHERE owner_id = $1
		ORDER BY appt_date DESC, start_time DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListByProvider(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointment
		WHERE provider_id = $1
		  AND appt_date = $2
		ORDER BY start_time
	`, providerID, schedule.DateOnly(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev Event) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointment_event (appointment_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, now())
	`, ev.AppointmentID, ev.EventType, ev.Payload)
	return err
}

func (r *PgRepository) ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, appointment_id, event_type, payload, created_at
		FROM appointment_event
		WHERE appointment_id = $1
		ORDER BY id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.AppointmentID, &ev.EventType, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
