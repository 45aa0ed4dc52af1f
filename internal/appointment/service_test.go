package appointment

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetdesk/vetbook/internal/directory"
	redisclient "github.com/vetdesk/vetbook/internal/redis"
	"github.com/vetdesk/vetbook/internal/schedule"
)

// In-memory fakes. The repo mirrors the store's contract: an Occupies
// scan under the mutex plays the role of the partial unique index, so
// concurrent Create calls for one slot admit exactly one winner and a
// cancelled row frees its slot with no bookkeeping.

type fakeRepo struct {
	mu     sync.Mutex
	appts  map[uuid.UUID]*Appointment
	events []Event
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		appts: make(map[uuid.UUID]*Appointment),
	}
}

func (r *fakeRepo) slotHeldLocked(providerID uuid.UUID, date time.Time, start schedule.TimeOfDay, excludeID uuid.UUID) bool {
	for _, other := range r.appts {
		if other.ID != excludeID && other.Occupies(providerID, date, start) {
			return true
		}
	}
	return false
}

func slotMapKey(providerID uuid.UUID, date time.Time, start schedule.TimeOfDay) string {
	return fmt.Sprintf("%s|%s|%s", providerID, schedule.FormatDate(date), start)
}

func (r *fakeRepo) Create(ctx context.Context, appt *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slotHeldLocked(appt.ProviderID, appt.Date, appt.Start, uuid.Nil) {
		return nil, ErrSlotTaken
	}

	saved := *appt
	saved.ID = uuid.New()
	saved.Status = StatusScheduled
	saved.CreatedAt = time.Now()
	saved.UpdatedAt = saved.CreatedAt

	r.appts[saved.ID] = &saved
	out := saved
	return &out, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := *appt
	return &out, nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, from ...Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if len(from) > 0 {
		matched := false
		for _, f := range from {
			if appt.Status == f {
				matched = true
				break
			}
		}
		if !matched {
			return nil, ErrStatusChanged
		}
	}

	appt.Status = to
	appt.UpdatedAt = time.Now()
	out := *appt
	return &out, nil
}

func (r *fakeRepo) UpdateSchedule(ctx context.Context, id uuid.UUID, move Reschedule) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if !appt.Status.Reschedulable() {
		return nil, ErrStatusChanged
	}

	if r.slotHeldLocked(appt.ProviderID, move.Date, move.Start, id) {
		return nil, ErrSlotTaken
	}

	appt.Date = move.Date
	appt.Start = move.Start
	appt.End = move.End
	appt.Status = StatusScheduled
	if appt.Notes == nil {
		appt.Notes = &move.Note
	} else {
		joined := *appt.Notes + "\n" + move.Note
		appt.Notes = &joined
	}
	appt.UpdatedAt = time.Now()
	out := *appt
	return &out, nil
}

func (r *fakeRepo) Complete(ctx context.Context, id uuid.UUID, params CompleteParams) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if appt.Status != StatusConfirmed && appt.Status != StatusInProgress {
		return nil, ErrStatusChanged
	}

	appt.Status = StatusCompleted
	if params.Notes != nil {
		appt.Notes = params.Notes
	}
	if params.Prescription != nil {
		appt.Prescription = params.Prescription
	}
	if params.Cost != nil {
		appt.Cost = params.Cost
	}
	appt.UpdatedAt = time.Now()
	out := *appt
	return &out, nil
}

func (r *fakeRepo) ListForDay(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, appt := range r.appts {
		if appt.ProviderID == providerID && appt.Date.Equal(schedule.DateOnly(date)) && appt.Status != StatusCancelled {
			out = append(out, *appt)
		}
	}
	return out, nil
}

func (r *fakeRepo) AnyOverlapping(ctx context.Context, providerID uuid.UUID, date time.Time, start, end schedule.TimeOfDay, excludeID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, appt := range r.appts {
		if appt.ID == excludeID || appt.Status == StatusCancelled {
			continue
		}
		if appt.ProviderID == providerID && appt.Date.Equal(schedule.DateOnly(date)) &&
			schedule.Overlaps(appt.Start, appt.End, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, appt := range r.appts {
		if appt.OwnerID == ownerID {
			out = append(out, *appt)
		}
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) ListByProvider(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error) {
	return r.ListForDay(ctx, providerID, date)
}

func (r *fakeRepo) InsertEvent(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	ev.CreatedAt = time.Now()
	r.events = append(r.events, ev)
	return nil
}

func (r *fakeRepo) ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.AppointmentID == appointmentID {
			out = append(out, ev)
		}
	}
	return out, nil
}

type fakeSlots struct {
	mu    sync.Mutex
	slots map[string]*schedule.TimeSlot
}

func newFakeSlots() *fakeSlots {
	return &fakeSlots{slots: make(map[string]*schedule.TimeSlot)}
}

func (f *fakeSlots) add(providerID uuid.UUID, date time.Time, start schedule.TimeOfDay, durationMinutes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[slotMapKey(providerID, date, start)] = &schedule.TimeSlot{
		ProviderID: providerID,
		Date:       schedule.DateOnly(date),
		Start:      start,
		End:        start.Add(durationMinutes),
	}
}

func (f *fakeSlots) block(providerID uuid.UUID, date time.Time, start schedule.TimeOfDay) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[slotMapKey(providerID, date, start)].Blocked = true
}

func (f *fakeSlots) GetSlot(ctx context.Context, providerID uuid.UUID, date time.Time, start schedule.TimeOfDay) (*schedule.TimeSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[slotMapKey(providerID, date, start)]
	if !ok {
		return nil, schedule.ErrSlotNotFound
	}
	out := *slot
	return &out, nil
}

type fakeDirectory struct {
	providers map[uuid.UUID]*directory.Provider
	pets      map[uuid.UUID]*directory.Pet
}

func (f *fakeDirectory) GetProvider(ctx context.Context, id uuid.UUID) (*directory.Provider, error) {
	p, ok := f.providers[id]
	if !ok {
		return nil, directory.ErrProviderNotFound
	}
	return p, nil
}

func (f *fakeDirectory) GetPet(ctx context.Context, id uuid.UUID) (*directory.Pet, error) {
	p, ok := f.pets[id]
	if !ok {
		return nil, directory.ErrPetNotFound
	}
	return p, nil
}

// passLocker runs the critical section without any exclusion, leaving
// the repo's unique key as the only guard, exactly the degraded mode the
// engine must survive.
type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type deniedLocker struct{}

func (deniedLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

// fixture wires a service around the fakes with one provider, one owner
// with a pet, and a 30-minute slot at 09:00.

type fixture struct {
	svc      *Service
	repo     *fakeRepo
	slots    *fakeSlots
	provider uuid.UUID
	owner    uuid.UUID
	pet      uuid.UUID
	date     time.Time
	start    schedule.TimeOfDay
}

func newFixture(t *testing.T, locker redisclient.Locker) *fixture {
	t.Helper()

	f := &fixture{
		repo:     newFakeRepo(),
		slots:    newFakeSlots(),
		provider: uuid.New(),
		owner:    uuid.New(),
		pet:      uuid.New(),
		date:     time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		start:    schedule.TimeOfDay(9 * 60),
	}

	dir := &fakeDirectory{
		providers: map[uuid.UUID]*directory.Provider{
			f.provider: {ID: f.provider, ClinicID: uuid.New(), Name: "Dr. Reyes"},
		},
		pets: map[uuid.UUID]*directory.Pet{
			f.pet: {ID: f.pet, OwnerID: f.owner, Name: "Biscuit"},
		},
	}

	f.slots.add(f.provider, f.date, f.start, 30)
	f.svc = NewService(f.repo, f.slots, dir, locker)
	return f
}

func (f *fixture) bookParams() BookParams {
	return BookParams{
		ProviderID: f.provider,
		PetID:      f.pet,
		OwnerID:    f.owner,
		Date:       f.date,
		Start:      f.start,
		Reason:     "annual checkup",
	}
}

func TestBook(t *testing.T) {
	f := newFixture(t, passLocker{})
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.bookParams())
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Equal(t, f.start, appt.Start)
	assert.Equal(t, f.start.Add(30), appt.End)
	assert.Equal(t, "annual checkup", appt.Reason)

	events, err := f.svc.History(ctx, appt.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventBooked, events[0].EventType)
}

func TestBookSlotAlreadyTaken(t *testing.T) {
	f := newFixture(t, passLocker{})
	ctx := context.Background()

	_, err := f.svc.Book(ctx, f.bookParams())
	require.NoError(t, err)

	otherOwner, otherPet := uuid.New(), uuid.New()
	f.svc.directory.(*fakeDirectory).pets[otherPet] = &directory.Pet{ID: otherPet, OwnerID: otherOwner, Name: "Mochi"}

	p := f.bookParams()
	p.OwnerID, p.PetID = otherOwner, otherPet
	_, err = f.svc.Book(ctx, p)
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestBookUnknownSlot(t *testing.T) {
	f := newFixture(t, passLocker{})

	p := f.bookParams()
	p.Start = schedule.TimeOfDay(15 * 60)
	_, err := f.svc.Book(context.Background(), p)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestBookBlockedSlot(t *testing.T) {
	f := newFixture(t, passLocker{})
	f.slots.block(f.provider, f.date, f.start)

	_, err := f.svc.Book(context.Background(), f.bookParams())
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestBookPetOwnershipMismatch(t *testing.T) {
	f := newFixture(t, passLocker{})

	p := f.bookParams()
	p.OwnerID = uuid.New()
	_, err := f.svc.Book(context.Background(), p)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestBookUnknownProvider(t *testing.T) {
	f := newFixture(t, passLocker{})

	p := f.bookParams()
	p.ProviderID = uuid.New()
	_, err := f.svc.Book(context.Background(), p)
	assert.ErrorIs(t, err, directory.ErrProviderNotFound)
}

func TestBookLockContended(t *testing.T) {
	f := newFixture(t, deniedLocker{})

	_, err := f.svc.Book(context.Background(), f.bookParams())
	assert.ErrorIs(t, err, ErrSlotContended)
}

func TestBookConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t, passLocker{})
	ctx := context.Background()

	const racers = 16
	dir := f.svc.directory.(*fakeDirectory)
	params := make([]BookParams, racers)
	for i := range params {
		owner, pet := uuid.New(), uuid.New()
		dir.pets[pet] = &directory.Pet{ID: pet, OwnerID: owner, Name: fmt.Sprintf("pet-%d", i)}
		p := f.bookParams()
		p.OwnerID, p.PetID = owner, pet
		params[i] = p
	}

	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Book(ctx, params[i])
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, ErrSlotTaken)
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)
}

func TestCancelFreesSlot(t *testing.T) {
	f := newFixture(t, passLocker{})
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.bookParams())
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, appt.ID, f.owner)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	// The freed slot books again.
	again, err := f.svc.Book(ctx, f.bookParams())
	require.NoError(t, err)
	assert.NotEqual(t, appt.ID, again.ID)
}

func TestCancelAuthorization(t *testing.T) {
	f := newFixture(t, passLocker{})
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.bookParams())
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, appt.ID, uuid.New())
	assert.ErrorIs(t, err, ErrUnauthorized)

	// The assigned provider may cancel.
	_, err = f.svc.Cancel(ctx, appt.ID, f.provider)
	assert.NoError(t, err)
}

func TestCancelTerminalAppointment(t *testing.T) {
	f := newFixture(t, passLocker{})
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.bookParams())
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, appt.ID, f.provider)
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, appt.ID, f.provider)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, appt.ID, f.owner)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestLifecycleTransitions(t *testing.T) {
	f := newFixture(t, passLocker{})
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.bookParams())
	require.NoError(t, err)

	// Start before confirm is illegal.
	_, err = f.svc.Start(ctx, appt.ID, f.provider)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	confirmed, err := f.svc.Confirm(ctx, appt.ID, f.provider)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	started, err := f.svc.Start(ctx, appt.ID, f.provider)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, started.Status)

	notes, rx, cost := "healthy", "none", 85.0
	done, err := f.svc.Complete(ctx, appt.ID, f.provider, CompleteParams{Notes: &notes, Prescription: &rx, Cost: &cost})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	require.NotNil(t, done.Cost)
	assert.Equal(t, 85.0, *done.Cost)

	// Terminal.
	_, err = f.svc.Confirm(ctx, appt.ID, f.provider)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestProviderOnlyTransitions(t *testing.T) {
	f := newFixture(t, passLocker{})
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.bookParams())
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, appt.ID, f.owner)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.Complete(ctx, appt.ID, f.owner, CompleteParams{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRescheduleMovesSlot(t *testing.T) {
	f := newFixture(t, passLocker{})
	ctx := context.Background()

	newStart := schedule.TimeOfDay(14 * 60)
	f.slots.add(f.provider, f.date, newStart, 30)

	appt, err := f.svc.Book(ctx, f.bookParams())
	require.NoError(t, err)

	moved, err := f.svc.Reschedule(ctx, appt.ID, f.owner, f.date, newStart, "conflict with work")
	require.NoError(t, err)
	assert.Equal(t, newStart, moved.Start)
	assert.Equal(t, StatusScheduled, moved.Status)
	require.NotNil(t, moved.Notes)
	assert.Contains(t, *moved.Notes, "Rescheduled from 2026-09-07 09:00 to 2026-09-07 14:00")
	assert.Contains(t, *moved.Notes, "conflict with work")

	// The vacated slot books again.
	otherOwner, otherPet := uuid.New(), uuid.New()
	f.svc.directory.(*fakeDirectory).pets[otherPet] = &directory.Pet{ID: otherPet, OwnerID: otherOwner, Name: "Tofu"}
	p := f.bookParams()
	p.OwnerID, p.PetID = otherOwner, otherPet
	_, err = f.svc.Book(ctx, p)
	assert.NoError(t, err)
}

func TestRescheduleNoOp(t *testing.T) {
	f := newFixture(t, passLocker{})
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.bookParams())
	require.NoError(t, err)

	same, err := f.svc.Reschedule(ctx, appt.ID, f.owner, f.date, f.start, "")
	require.NoError(t, err)
	assert.Equal(t, appt.ID, same.ID)
	assert.Nil(t, same.Notes)
}

func TestRescheduleTargetTaken(t *testing.T) {
	f := newFixture(t, passLocker{})
	ctx := context.Background()

	otherStart := schedule.TimeOfDay(10 * 60)
	f.slots.add(f.provider, f.date, otherStart, 30)

	appt, err := f.svc.Book(ctx, f.bookParams())
	require.NoError(t, err)

	otherOwner, otherPet := uuid.New(), uuid.New()
	f.svc.directory.(*fakeDirectory).pets[otherPet] = &directory.Pet{ID: otherPet, OwnerID: otherOwner, Name: "Pepper"}
	p := f.bookParams()
	p.OwnerID, p.PetID, p.Start = otherOwner, otherPet, otherStart
	_, err = f.svc.Book(ctx, p)
	require.NoError(t, err)

	_, err = f.svc.Reschedule(ctx, appt.ID, f.owner, f.date, otherStart, "")
	assert.ErrorIs(t, err, ErrSlotTaken)

	// Original booking is untouched.
	kept, err := f.svc.Get(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, f.start, kept.Start)
}

func TestRescheduleGuards(t *testing.T) {
	f := newFixture(t, passLocker{})
	ctx := context.Background()

	newStart := schedule.TimeOfDay(14 * 60)
	f.slots.add(f.provider, f.date, newStart, 30)

	appt, err := f.svc.Book(ctx, f.bookParams())
	require.NoError(t, err)

	_, err = f.svc.Reschedule(ctx, appt.ID, uuid.New(), f.date, newStart, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Confirm(ctx, appt.ID, f.provider)
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, appt.ID, f.provider)
	require.NoError(t, err)

	_, err = f.svc.Reschedule(ctx, appt.ID, f.owner, f.date, newStart, "")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestHistoryRecordsLifecycle(t *testing.T) {
	f := newFixture(t, passLocker{})
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.bookParams())
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, appt.ID, f.provider)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, appt.ID, f.owner)
	require.NoError(t, err)

	events, err := f.svc.History(ctx, appt.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventBooked, events[0].EventType)
	assert.Equal(t, EventConfirmed, events[1].EventType)
	assert.Equal(t, EventCancelled, events[2].EventType)

	_, err = f.svc.History(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}
