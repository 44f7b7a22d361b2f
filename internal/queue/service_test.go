package queue

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-queue/internal/directory"
	"github.com/hackgods/clinic-queue/internal/redisclient"
)

// --- in-memory fakes ---

type memRepo struct {
	mu           sync.Mutex
	queues       map[uuid.UUID]*Queue
	byDoctorDate map[string]uuid.UUID
	entries      map[uuid.UUID]*Entry
}

func newMemRepo() *memRepo {
	return &memRepo{
		queues:       make(map[uuid.UUID]*Queue),
		byDoctorDate: make(map[string]uuid.UUID),
		entries:      make(map[uuid.UUID]*Entry),
	}
}

func doctorDateKey(doctorID uuid.UUID, date time.Time) string {
	return doctorID.String() + "|" + date.Format("2006-01-02")
}

func (r *memRepo) CreateQueue(_ context.Context, q *Queue) (*Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := doctorDateKey(q.DoctorID, q.Date)
	if _, exists := r.byDoctorDate[key]; exists {
		return nil, ErrDuplicateQueue
	}

	stored := *q
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.queues[stored.ID] = &stored
	r.byDoctorDate[key] = stored.ID

	out := stored
	return &out, nil
}

func (r *memRepo) GetQueueByID(_ context.Context, id uuid.UUID) (*Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[id]
	if !ok {
		return nil, ErrQueueNotFound
	}
	out := *q
	return &out, nil
}

func (r *memRepo) GetQueueByDoctorDate(_ context.Context, doctorID uuid.UUID, date time.Time) (*Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byDoctorDate[doctorDateKey(doctorID, date)]
	if !ok {
		return nil, ErrQueueNotFound
	}
	out := *r.queues[id]
	return &out, nil
}

func (r *memRepo) UpdateQueueStatus(_ context.Context, id uuid.UUID, from, to Status) (*Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[id]
	if !ok || q.Status != from {
		return nil, ErrQueueNotFound
	}
	q.Status = to
	q.UpdatedAt = time.Now()
	out := *q
	return &out, nil
}

func (r *memRepo) SetAverageWait(_ context.Context, id uuid.UUID, minutes int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[id]
	if !ok {
		return ErrQueueNotFound
	}
	q.AvgWaitMinutes = minutes
	return nil
}

func (r *memRepo) CreateEntry(_ context.Context, e *Entry) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.entries {
		if existing.PatientID == e.PatientID &&
			(existing.Status == EntryWaiting || existing.Status == EntryInProgress) {
			return nil, ErrDuplicateLiveEntry
		}
	}

	stored := *e
	r.entries[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (r *memRepo) GetEntryByID(_ context.Context, id uuid.UUID) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	out := *e
	return &out, nil
}

func (r *memRepo) UpdateEntry(_ context.Context, e *Entry, from EntryStatus) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.entries[e.ID]
	if !ok || stored.Status != from {
		return nil, ErrEntryNotFound
	}
	updated := *e
	r.entries[e.ID] = &updated
	out := updated
	return &out, nil
}

func (r *memRepo) FindLiveEntryByPatient(_ context.Context, patientID uuid.UUID) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.PatientID == patientID &&
			(e.Status == EntryWaiting || e.Status == EntryInProgress) {
			out := *e
			return &out, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (r *memRepo) CancelWaitingEntries(_ context.Context, queueID uuid.UUID, now time.Time) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cancelled []Entry
	for _, e := range r.entries {
		if e.QueueID == queueID && e.Status == EntryWaiting {
			e.Status = EntryCancelled
			e.UpdatedAt = now
			cancelled = append(cancelled, *e)
		}
	}
	return cancelled, nil
}

func (r *memRepo) ListEntries(_ context.Context, queueID uuid.UUID) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Entry
	for _, e := range r.entries {
		if e.QueueID == queueID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (r *memRepo) CountEntriesByStatus(_ context.Context, queueID uuid.UUID) (map[EntryStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[EntryStatus]int)
	for _, e := range r.entries {
		if e.QueueID == queueID {
			counts[e.Status]++
		}
	}
	return counts, nil
}

func (r *memRepo) AverageActualWait(_ context.Context, queueID uuid.UUID) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sum, n int
	for _, e := range r.entries {
		if e.QueueID == queueID && e.Status == EntryCompleted &&
			e.ActualWaitMinutes != nil && *e.ActualWaitMinutes > 0 {
			sum += *e.ActualWaitMinutes
			n++
		}
	}
	if n == 0 {
		return 0, false, nil
	}
	return int(float64(sum)/float64(n) + 0.5), true, nil
}

type fakeDirectory struct {
	doctors  map[uuid.UUID]*directory.Doctor
	patients map[uuid.UUID]*directory.Patient
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		doctors:  make(map[uuid.UUID]*directory.Doctor),
		patients: make(map[uuid.UUID]*directory.Patient),
	}
}

func (d *fakeDirectory) GetDoctorByID(_ context.Context, id uuid.UUID) (*directory.Doctor, error) {
	doc, ok := d.doctors[id]
	if !ok {
		return nil, directory.ErrDoctorNotFound
	}
	return doc, nil
}

func (d *fakeDirectory) GetPatientByID(_ context.Context, id uuid.UUID) (*directory.Patient, error) {
	p, ok := d.patients[id]
	if !ok {
		return nil, directory.ErrPatientNotFound
	}
	return p, nil
}

func (d *fakeDirectory) GetHospitalByID(_ context.Context, id uuid.UUID) (*directory.Hospital, error) {
	return nil, directory.ErrHospitalNotFound
}

func (d *fakeDirectory) ListSchedulableDoctors(_ context.Context) ([]directory.Doctor, error) {
	var out []directory.Doctor
	for _, doc := range d.doctors {
		if doc.Active && doc.HospitalID != nil {
			out = append(out, *doc)
		}
	}
	return out, nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	keys []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.held[key] {
		l.mu.Unlock()
		return redisclient.ErrLockNotAcquired
	}
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return fn(ctx)
}

type publication struct {
	Room  string
	Event string
}

type recordingBus struct {
	mu     sync.Mutex
	events []publication
}

func (b *recordingBus) Publish(_ context.Context, room, event string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publication{Room: room, Event: event})
	return nil
}

func (b *recordingBus) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

func (b *recordingBus) roomCount(room string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.events {
		if p.Room == room {
			n++
		}
	}
	return n
}

// --- fixture ---

type fixture struct {
	svc      *Service
	repo     *memRepo
	dir      *fakeDirectory
	locker   *fakeLocker
	bus      *recordingBus
	hospital uuid.UUID
	doctor   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newMemRepo()
	dir := newFakeDirectory()
	locker := newFakeLocker()
	bus := &recordingBus{}

	hospitalID := uuid.New()
	doctorID := uuid.New()
	dir.doctors[doctorID] = &directory.Doctor{
		ID:         doctorID,
		Name:       "Dr. Chen",
		HospitalID: &hospitalID,
		Active:     true,
	}

	svc := NewService(repo, dir, locker, bus, 50, 30, zerolog.Nop())

	return &fixture{
		svc:      svc,
		repo:     repo,
		dir:      dir,
		locker:   locker,
		bus:      bus,
		hospital: hospitalID,
		doctor:   doctorID,
	}
}

func (f *fixture) addPatient(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	f.dir.patients[id] = &directory.Patient{ID: id, Name: "Test Patient"}
	return id
}

var testDay = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

// --- EnsureQueue ---

func TestEnsureQueueCreatesThenReuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q1, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, q1.Status)
	assert.Equal(t, f.hospital, q1.HospitalID)
	assert.Equal(t, 50, q1.MaxCapacity)
	assert.Equal(t, 30, q1.AvgWaitMinutes)

	q2, err := f.svc.EnsureQueue(ctx, f.doctor, testDay.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, q1.ID, q2.ID, "same calendar day must map to the same queue")
}

func TestEnsureQueueDistinctPerDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q1, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)
	q2, err := f.svc.EnsureQueue(ctx, f.doctor, testDay.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.NotEqual(t, q1.ID, q2.ID)
}

func TestEnsureQueueRejectsUnschedulableDoctor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inactive := uuid.New()
	f.dir.doctors[inactive] = &directory.Doctor{ID: inactive, Active: false, HospitalID: &f.hospital}

	unassigned := uuid.New()
	f.dir.doctors[unassigned] = &directory.Doctor{ID: unassigned, Active: true}

	_, err := f.svc.EnsureQueue(ctx, inactive, testDay)
	assert.ErrorIs(t, err, ErrDoctorNotSchedulable)

	_, err = f.svc.EnsureQueue(ctx, unassigned, testDay)
	assert.ErrorIs(t, err, ErrDoctorNotSchedulable)
}

func TestEnsureQueueContendedLockFallsBackToRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	date := truncateToDate(testDay)
	f.locker.held[queueLockKey(f.doctor, date)] = true

	// Nothing exists yet and the lock is held elsewhere.
	_, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	assert.ErrorIs(t, err, ErrQueueContended)

	// Once the competing creator has committed, the re-read resolves it.
	created, err := f.repo.CreateQueue(ctx, &Queue{
		ID:         uuid.New(),
		HospitalID: f.hospital,
		DoctorID:   f.doctor,
		Date:       date,
		Status:     StatusActive,
	})
	require.NoError(t, err)

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)
	assert.Equal(t, created.ID, q.ID)
}

// --- Join ---

func TestJoinAppendsWaitingEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)

	patientID := f.addPatient(t)
	entry, err := f.svc.Join(ctx, q.ID, JoinRequest{PatientID: patientID, Reason: "fever"})
	require.NoError(t, err)

	assert.Equal(t, EntryWaiting, entry.Status)
	assert.Equal(t, PriorityNormal, entry.Priority, "priority defaults to normal")
	assert.Equal(t, 30, entry.EstimatedWaitMinutes, "estimate quoted from queue average")
	assert.False(t, entry.RequestedAt.IsZero())

	assert.Equal(t, 1, f.bus.roomCount("patient:"+patientID.String()))
	assert.Equal(t, 1, f.bus.roomCount("hospital:"+f.hospital.String()))
}

func TestJoinRejectsUnknownPriority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)

	_, err = f.svc.Join(ctx, q.ID, JoinRequest{PatientID: f.addPatient(t), Priority: "urgent"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestJoinRejectsUnknownPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)

	_, err = f.svc.Join(ctx, q.ID, JoinRequest{PatientID: uuid.New()})
	assert.ErrorIs(t, err, directory.ErrPatientNotFound)
}

func TestJoinPausedQueueRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)
	_, err = f.svc.SetStatus(ctx, q.ID, StatusPaused)
	require.NoError(t, err)

	_, err = f.svc.Join(ctx, q.ID, JoinRequest{PatientID: f.addPatient(t)})
	assert.ErrorIs(t, err, ErrQueueNotActive)
}

func TestJoinSecondLiveEntryRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)

	// A second doctor with their own queue: the exclusivity is
	// system-wide, not per queue.
	otherDoctor := uuid.New()
	f.dir.doctors[otherDoctor] = &directory.Doctor{ID: otherDoctor, Active: true, HospitalID: &f.hospital}
	otherQueue, err := f.svc.EnsureQueue(ctx, otherDoctor, testDay)
	require.NoError(t, err)

	patientID := f.addPatient(t)
	first, err := f.svc.Join(ctx, q.ID, JoinRequest{PatientID: patientID})
	require.NoError(t, err)

	_, err = f.svc.Join(ctx, otherQueue.ID, JoinRequest{PatientID: patientID})
	require.ErrorIs(t, err, ErrPatientAlreadyQueued)

	var dup *AlreadyQueuedError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.EntryID)
	assert.Equal(t, q.ID, dup.QueueID)
}

func TestJoinAllowedAfterEntryLeavesLiveSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)

	patientID := f.addPatient(t)
	first, err := f.svc.Join(ctx, q.ID, JoinRequest{PatientID: patientID})
	require.NoError(t, err)

	_, err = f.svc.UpdateEntryStatus(ctx, first.ID, EntryCancelled)
	require.NoError(t, err)

	second, err := f.svc.Join(ctx, q.ID, JoinRequest{PatientID: patientID})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestJoinQueueFull(t *testing.T) {
	f := newFixture(t)
	f.svc.capacity = 2
	ctx := context.Background()

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)

	_, err = f.svc.Join(ctx, q.ID, JoinRequest{PatientID: f.addPatient(t)})
	require.NoError(t, err)
	second, err := f.svc.Join(ctx, q.ID, JoinRequest{PatientID: f.addPatient(t)})
	require.NoError(t, err)

	_, err = f.svc.Join(ctx, q.ID, JoinRequest{PatientID: f.addPatient(t)})
	assert.ErrorIs(t, err, ErrQueueFull)

	// Only waiting and in_progress count toward capacity; a completed
	// consultation frees a seat.
	_, err = f.svc.UpdateEntryStatus(ctx, second.ID, EntryInProgress)
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, q.ID, JoinRequest{PatientID: f.addPatient(t)})
	assert.ErrorIs(t, err, ErrQueueFull, "in_progress still occupies a seat")

	_, err = f.svc.UpdateEntryStatus(ctx, second.ID, EntryCompleted)
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, q.ID, JoinRequest{PatientID: f.addPatient(t)})
	assert.NoError(t, err)
}

// --- average wait ---

func TestAverageWaitRecomputedOnCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := testDay
	f.svc.now = func() time.Time { return now }

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)

	entry, err := f.svc.Join(ctx, q.ID, JoinRequest{PatientID: f.addPatient(t)})
	require.NoError(t, err)
	assert.Equal(t, 30, entry.EstimatedWaitMinutes)

	now = now.Add(40 * time.Minute)
	_, err = f.svc.UpdateEntryStatus(ctx, entry.ID, EntryInProgress)
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	_, err = f.svc.UpdateEntryStatus(ctx, entry.ID, EntryCompleted)
	require.NoError(t, err)

	later, err := f.svc.Join(ctx, q.ID, JoinRequest{PatientID: f.addPatient(t)})
	require.NoError(t, err)
	assert.Equal(t, 40, later.EstimatedWaitMinutes, "new joiner quoted the recomputed average")
	assert.Equal(t, 30, entry.EstimatedWaitMinutes, "existing quote never rewritten")
}

func TestAverageWaitUntouchedWithoutCompletions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)

	entry, err := f.svc.Join(ctx, q.ID, JoinRequest{PatientID: f.addPatient(t)})
	require.NoError(t, err)
	_, err = f.svc.UpdateEntryStatus(ctx, entry.ID, EntryNoShow)
	require.NoError(t, err)

	later, err := f.svc.Join(ctx, q.ID, JoinRequest{PatientID: f.addPatient(t)})
	require.NoError(t, err)
	assert.Equal(t, 30, later.EstimatedWaitMinutes, "no-shows never move the average")
}

// --- entry status via service ---

func TestUpdateEntryStatusRejectsIllegalTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)

	entry, err := f.svc.Join(ctx, q.ID, JoinRequest{PatientID: f.addPatient(t)})
	require.NoError(t, err)

	_, err = f.svc.UpdateEntryStatus(ctx, entry.ID, EntryCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition, "waiting cannot jump straight to completed")
}

func TestUpdateEntryStatusUnknownEntry(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateEntryStatus(context.Background(), uuid.New(), EntryInProgress)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

// --- queue lifecycle ---

func TestSetStatusPauseAndResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)

	paused, err := f.svc.SetStatus(ctx, q.ID, StatusPaused)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, paused.Status)

	resumed, err := f.svc.SetStatus(ctx, q.ID, StatusActive)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, resumed.Status)
}

func TestSetStatusSameStatusNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)

	f.bus.reset()
	same, err := f.svc.SetStatus(ctx, q.ID, StatusActive)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, same.Status)
	assert.Empty(t, f.bus.events, "no-op must not publish")
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)

	_, err = f.svc.SetStatus(ctx, q.ID, Status("archived"))
	assert.ErrorIs(t, err, ErrInvalidQueueStatus)
}

func TestCloseIsOneWay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)

	_, err = f.svc.SetStatus(ctx, q.ID, StatusClosed)
	require.NoError(t, err)

	_, err = f.svc.SetStatus(ctx, q.ID, StatusActive)
	assert.ErrorIs(t, err, ErrQueueClosed)
	_, err = f.svc.SetStatus(ctx, q.ID, StatusPaused)
	assert.ErrorIs(t, err, ErrQueueClosed)
	_, err = f.svc.SetStatus(ctx, q.ID, StatusClosed)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestCloseCancelsWaitingAndNotifiesEachPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)

	waiting := make([]uuid.UUID, 3)
	entries := make([]*Entry, 3)
	for i := range waiting {
		waiting[i] = f.addPatient(t)
		entries[i], err = f.svc.Join(ctx, q.ID, JoinRequest{PatientID: waiting[i]})
		require.NoError(t, err)
	}

	consulting := f.addPatient(t)
	inProgress, err := f.svc.Join(ctx, q.ID, JoinRequest{PatientID: consulting})
	require.NoError(t, err)
	_, err = f.svc.UpdateEntryStatus(ctx, inProgress.ID, EntryInProgress)
	require.NoError(t, err)

	f.bus.reset()
	closed, err := f.svc.SetStatus(ctx, q.ID, StatusClosed)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)

	for _, e := range entries {
		got, err := f.repo.GetEntryByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, EntryCancelled, got.Status)
	}

	got, err := f.repo.GetEntryByID(ctx, inProgress.ID)
	require.NoError(t, err)
	assert.Equal(t, EntryInProgress, got.Status, "in-flight consultation survives the close")

	for _, pid := range waiting {
		assert.Equal(t, 1, f.bus.roomCount("patient:"+pid.String()),
			"each cancelled patient notified exactly once")
	}
	assert.Equal(t, 0, f.bus.roomCount("patient:"+consulting.String()))
	assert.Equal(t, 1, f.bus.roomCount("hospital:"+f.hospital.String()))
}

// --- stats and snapshot ---

func TestStatsCountsByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)

	a, err := f.svc.Join(ctx, q.ID, JoinRequest{PatientID: f.addPatient(t)})
	require.NoError(t, err)
	b, err := f.svc.Join(ctx, q.ID, JoinRequest{PatientID: f.addPatient(t)})
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, q.ID, JoinRequest{PatientID: f.addPatient(t)})
	require.NoError(t, err)

	_, err = f.svc.UpdateEntryStatus(ctx, a.ID, EntryInProgress)
	require.NoError(t, err)
	_, err = f.svc.UpdateEntryStatus(ctx, b.ID, EntryNoShow)
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, q.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Waiting)
	assert.Equal(t, 1, stats.InProgress)
	assert.Equal(t, 1, stats.NoShow)
	assert.Equal(t, 0, stats.Completed)
	assert.Equal(t, 3, stats.Total)
}

func TestSnapshotOrdersByJoinTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := testDay
	f.svc.now = func() time.Time { return now }

	q, err := f.svc.EnsureQueue(ctx, f.doctor, testDay)
	require.NoError(t, err)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		e, err := f.svc.Join(ctx, q.ID, JoinRequest{PatientID: f.addPatient(t)})
		require.NoError(t, err)
		ids = append(ids, e.ID)
		now = now.Add(time.Minute)
	}

	snap, err := f.svc.Snapshot(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 3)
	for i, e := range snap.Entries {
		assert.Equal(t, ids[i], e.ID)
	}
}
