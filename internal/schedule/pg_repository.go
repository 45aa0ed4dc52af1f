package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// pgtype helpers

func pgTime(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * 60 * 1e6, Valid: true}
}

func pgTimePtr(t *TimeOfDay) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	return pgTime(*t)
}

func fromPGTime(pt pgtype.Time) TimeOfDay {
	return TimeOfDay(pt.Microseconds / (60 * 1e6))
}

func fromPGTimePtr(pt pgtype.Time) *TimeOfDay {
	if !pt.Valid {
		return nil
	}
	t := fromPGTime(pt)
	return &t
}

// Weekly schedule

func (r *PgRepository) GetWeek(ctx context.Context, providerID uuid.UUID) (*WeekSchedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT day_of_week, is_working, start_time, end_time, break_start, break_end, slot_duration_min, updated_at
		FROM weekly_schedule
		WHERE provider_id = $1
		ORDER BY day_of_week
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	week := WeekSchedule{ProviderID: providerID}
	found := false

	for rows.Next() {
		var (
			dow                  int
			start, end, bs, be   pgtype.Time
			working              bool
			duration             int
			updatedAt            time.Time
		)
		if err := rows.Scan(&dow, &working, &start, &end, &bs, &be, &duration, &updatedAt); err != nil {
			return nil, err
		}
		found = true
		if updatedAt.After(week.UpdatedAt) {
			week.UpdatedAt = updatedAt
		}
		if dow < 0 || dow >= DaysPerWeek {
			continue
		}
		week.Days[dow] = DaySchedule{
			Working:      working,
			Start:        fromPGTime(start),
			End:          fromPGTime(end),
			BreakStart:   fromPGTimePtr(bs),
			BreakEnd:     fromPGTimePtr(be),
			SlotDuration: duration,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrWeekNotFound
	}

	return &week, nil
}

func (r *PgRepository) SaveWeek(ctx context.Context, week *WeekSchedule, regenerated []DaySlots) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save week: %w", err)
	}
	defer tx.Rollback(ctx)

	for dow := Sunday; dow <= Saturday; dow++ {
		day := week.Days[dow]
		_, err := tx.Exec(ctx, `
			INSERT INTO weekly_schedule
				(provider_id, day_of_week, is_working, start_time, end_time, break_start, break_end, slot_duration_min, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (provider_id, day_of_week) DO UPDATE SET
				is_working = EXCLUDED.is_working,
				start_time = EXCLUDED.start_time,
				end_time = EXCLUDED.end_time,
				break_start = EXCLUDED.break_start,
				break_end = EXCLUDED.break_end,
				slot_duration_min = EXCLUDED.slot_duration_min,
				updated_at = now()
		`, week.ProviderID, int(dow), day.Working, pgTime(day.Start), pgTime(day.End),
			pgTimePtr(day.BreakStart), pgTimePtr(day.BreakEnd), day.SlotDuration)
		if err != nil {
			return fmt.Errorf("upsert weekly schedule day %d: %w", dow, err)
		}
	}

	for _, day := range regenerated {
		if err := replaceDaySlotsTx(ctx, tx, week.ProviderID, day); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Exceptions

func scanException(row pgx.Row) (*Exception, error) {
	var (
		exc                Exception
		start, end, bs, be pgtype.Time
		duration           *int
	)
	err := row.Scan(
		&exc.ProviderID,
		&exc.Date,
		&exc.Type,
		&start,
		&end,
		&bs,
		&be,
		&duration,
		&exc.Notes,
		&exc.CreatedAt,
		&exc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExceptionNotFound
		}
		return nil, err
	}

	exc.Date = DateOnly(exc.Date)
	if exc.Type == ExceptionCustomHours && start.Valid && end.Valid && duration != nil {
		exc.Hours = &DaySchedule{
			Working:      true,
			Start:        fromPGTime(start),
			End:          fromPGTime(end),
			BreakStart:   fromPGTimePtr(bs),
			BreakEnd:     fromPGTimePtr(be),
			SlotDuration: *duration,
		}
	}
	return &exc, nil
}

const exceptionColumns = `provider_id, exception_date, exception_type, start_time, end_time, break_start, break_end, slot_duration_min, notes, created_at, updated_at`

func (r *PgRepository) GetException(ctx context.Context, providerID uuid.UUID, date time.Time) (*Exception, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+exceptionColumns+`
		FROM schedule_exception
		WHERE provider_id = $1 AND exception_date = $2
	`, providerID, DateOnly(date))
	return scanException(row)
}

func (r *PgRepository) ListExceptions(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Exception, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+exceptionColumns+`
		FROM schedule_exception
		WHERE provider_id = $1 AND exception_date BETWEEN $2 AND $3
		ORDER BY exception_date
	`, providerID, DateOnly(from), DateOnly(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Exception
	for rows.Next() {
		exc, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *exc)
	}
	return result, rows.Err()
}

func (r *PgRepository) SaveException(ctx context.Context, exc *Exception, regenerated DaySlots) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save exception: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		start, end pgtype.Time
		bs, be     pgtype.Time
		duration   *int
	)
	if exc.Hours != nil {
		start, end = pgTime(exc.Hours.Start), pgTime(exc.Hours.End)
		bs, be = pgTimePtr(exc.Hours.BreakStart), pgTimePtr(exc.Hours.BreakEnd)
		duration = &exc.Hours.SlotDuration
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO schedule_exception
			(provider_id, exception_date, exception_type, start_time, end_time, break_start, break_end, slot_duration_min, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		ON CONFLICT (provider_id, exception_date) DO UPDATE SET
			exception_type = EXCLUDED.exception_type,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			break_start = EXCLUDED.break_start,
			break_end = EXCLUDED.break_end,
			slot_duration_min = EXCLUDED.slot_duration_min,
			notes = EXCLUDED.notes,
			updated_at = now()
	`, exc.ProviderID, DateOnly(exc.Date), exc.Type, start, end, bs, be, duration, exc.Notes)
	if err != nil {
		return fmt.Errorf("upsert schedule exception: %w", err)
	}

	if err := replaceDaySlotsTx(ctx, tx, exc.ProviderID, regenerated); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) DeleteException(ctx context.Context, providerID uuid.UUID, date time.Time, regenerated DaySlots) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete exception: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM schedule_exception
		WHERE provider_id = $1 AND exception_date = $2
	`, providerID, DateOnly(date))
	if err != nil {
		return fmt.Errorf("delete schedule exception: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrExceptionNotFound
	}

	if err := replaceDaySlotsTx(ctx, tx, providerID, regenerated); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Slots

// replaceDaySlotsTx swaps out one date's slot rows. Blocked flags carry
// over to the new row with the same start time; blocked windows that no
// longer exist under the new schedule vanish with the old rows.
func replaceDaySlotsTx(ctx context.Context, tx pgx.Tx, providerID uuid.UUID, day DaySlots) error {
	date := DateOnly(day.Date)

	rows, err := tx.Query(ctx, `
		SELECT start_time FROM time_slot
		WHERE provider_id = $1 AND slot_date = $2 AND is_blocked
	`, providerID, date)
	if err != nil {
		return fmt.Errorf("load blocked slots: %w", err)
	}
	blocked := make(map[TimeOfDay]bool)
	for rows.Next() {
		var start pgtype.Time
		if err := rows.Scan(&start); err != nil {
			rows.Close()
			return err
		}
		blocked[fromPGTime(start)] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM time_slot WHERE provider_id = $1 AND slot_date = $2
	`, providerID, date); err != nil {
		return fmt.Errorf("clear slots for %s: %w", FormatDate(date), err)
	}

	for _, slot := range day.Slots {
		if _, err := tx.Exec(ctx, `
			INSERT INTO time_slot (provider_id, slot_date, start_time, end_time, is_blocked)
			VALUES ($1, $2, $3, $4, $5)
		`, providerID, date, pgTime(slot.Start), pgTime(slot.End), blocked[slot.Start]); err != nil {
			return fmt.Errorf("insert slot %s %s: %w", FormatDate(date), slot.Start, err)
		}
	}

	return nil
}

func (r *PgRepository) ReplaceDaySlots(ctx context.Context, providerID uuid.UUID, day DaySlots) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace slots: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := replaceDaySlotsTx(ctx, tx, providerID, day); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var (
		slot       TimeSlot
		start, end pgtype.Time
	)
	err := row.Scan(&slot.ProviderID, &slot.Date, &start, &end, &slot.Blocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	slot.Date = DateOnly(slot.Date)
	slot.Start = fromPGTime(start)
	slot.End = fromPGTime(end)
	return &slot, nil
}

func (r *PgRepository) ListDaySlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, slot_date, start_time, end_time, is_blocked
		FROM time_slot
		WHERE provider_id = $1 AND slot_date = $2
		ORDER BY start_time
	`, providerID, DateOnly(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimeSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *slot)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetSlot(ctx context.Context, providerID uuid.UUID, date time.Time, start TimeOfDay) (*TimeSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT provider_id, slot_date, start_time, end_time, is_blocked
		FROM time_slot
		WHERE provider_id = $1 AND slot_date = $2 AND start_time = $3
	`, providerID, DateOnly(date), pgTime(start))
	return scanSlot(row)
}

func (r *PgRepository) SetSlotBlocked(ctx context.Context, providerID uuid.UUID, date time.Time, start TimeOfDay, blocked bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE time_slot
		SET is_blocked = $4
		WHERE provider_id = $1 AND slot_date = $2 AND start_time = $3
	`, providerID, DateOnly(date), pgTime(start), blocked)
	if err != nil {
		return fmt.Errorf("set slot blocked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) ListProviderIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT provider_id FROM weekly_schedule
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
