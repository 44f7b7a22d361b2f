package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-queue/internal/directory"
	"github.com/hackgods/clinic-queue/internal/notify"
	"github.com/hackgods/clinic-queue/internal/redisclient"
)

var (
	ErrInvalidRequest       = errors.New("invalid queue request")
	ErrQueueNotActive       = errors.New("queue is not accepting entries")
	ErrQueueClosed          = errors.New("queue is closed for the day")
	ErrQueueFull            = errors.New("queue is at capacity")
	ErrQueueContended       = errors.New("queue operation in progress, please retry")
	ErrPatientAlreadyQueued = errors.New("patient already has a live queue entry")
	ErrInvalidQueueStatus   = errors.New("invalid queue status")
	ErrDoctorNotSchedulable = errors.New("doctor is inactive or not assigned to a hospital")
)

// AlreadyQueuedError is the join conflict; it carries the identifiers of
// the existing live entry so the caller can point the patient at it.
type AlreadyQueuedError struct {
	EntryID uuid.UUID
	QueueID uuid.UUID
}

func (e *AlreadyQueuedError) Error() string {
	return fmt.Sprintf("patient already queued: entry %s in queue %s", e.EntryID, e.QueueID)
}

func (e *AlreadyQueuedError) Is(target error) bool {
	return target == ErrPatientAlreadyQueued
}

type Service struct {
	repo        Repository
	dir         directory.Repository
	locker      redisclient.Locker
	bus         notify.Bus
	log         zerolog.Logger
	capacity    int
	defaultWait int
	now         func() time.Time
}

func NewService(repo Repository, dir directory.Repository, locker redisclient.Locker, bus notify.Bus, capacity, defaultWaitMinutes int, log zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		dir:         dir,
		locker:      locker,
		bus:         bus,
		log:         log,
		capacity:    capacity,
		defaultWait: defaultWaitMinutes,
		now:         time.Now,
	}
}

// EnsureQueue returns the queue for (doctor, date), creating it when
// absent. The check-and-create runs inside a per-(doctor,date) lock with
// the unique constraint as backstop, so concurrent first-joiners and the
// generator still produce exactly one queue.
func (s *Service) EnsureQueue(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Queue, error) {
	date = truncateToDate(date)

	if q, err := s.repo.GetQueueByDoctorDate(ctx, doctorID, date); err == nil {
		return q, nil
	} else if !errors.Is(err, ErrQueueNotFound) {
		return nil, fmt.Errorf("load queue: %w", err)
	}

	doctor, err := s.dir.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Active || doctor.HospitalID == nil {
		return nil, ErrDoctorNotSchedulable
	}
	hospitalID := *doctor.HospitalID

	var out *Queue

	err = s.locker.WithLock(ctx, queueLockKey(doctorID, date), func(lockCtx context.Context) error {
		// Re-check inside the critical section.
		if q, err := s.repo.GetQueueByDoctorDate(lockCtx, doctorID, date); err == nil {
			out = q
			return nil
		} else if !errors.Is(err, ErrQueueNotFound) {
			return fmt.Errorf("re-check queue: %w", err)
		}

		created, err := s.repo.CreateQueue(lockCtx, &Queue{
			ID:             uuid.New(),
			HospitalID:     hospitalID,
			DoctorID:       doctorID,
			Date:           date,
			Status:         StatusActive,
			MaxCapacity:    s.capacity,
			AvgWaitMinutes: s.defaultWait,
		})
		if err != nil {
			if errors.Is(err, ErrDuplicateQueue) {
				out, err = s.repo.GetQueueByDoctorDate(lockCtx, doctorID, date)
				return err
			}
			return fmt.Errorf("create queue: %w", err)
		}

		out = created
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			// Someone else is creating it right now; one re-read usually
			// resolves, otherwise the caller retries.
			if q, rerr := s.repo.GetQueueByDoctorDate(ctx, doctorID, date); rerr == nil {
				return q, nil
			}
			return nil, ErrQueueContended
		}
		return nil, err
	}

	return out, nil
}

type JoinRequest struct {
	PatientID   uuid.UUID
	Reason      string
	Priority    Priority
	RequestedAt time.Time
}

// Join appends a waiting entry for the patient. The per-patient lock
// plus the partial unique index guarantee the patient holds at most one
// live entry across all queues; the estimated wait is quoted from the
// queue's current average.
func (s *Service) Join(ctx context.Context, queueID uuid.UUID, req JoinRequest) (*Entry, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalidRequest)
	}
	switch req.Priority {
	case PriorityHigh, PriorityNormal, PriorityLow:
	case "":
		req.Priority = PriorityNormal
	default:
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidRequest, req.Priority)
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = s.now()
	}

	q, err := s.repo.GetQueueByID(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if q.Status != StatusActive {
		return nil, fmt.Errorf("%w: queue is %s", ErrQueueNotActive, q.Status)
	}

	if _, err := s.dir.GetPatientByID(ctx, req.PatientID); err != nil {
		return nil, err
	}

	var entry *Entry

	err = s.locker.WithLock(ctx, patientLockKey(req.PatientID), func(lockCtx context.Context) error {
		if existing, err := s.repo.FindLiveEntryByPatient(lockCtx, req.PatientID); err == nil {
			return &AlreadyQueuedError{EntryID: existing.ID, QueueID: existing.QueueID}
		} else if !errors.Is(err, ErrEntryNotFound) {
			return fmt.Errorf("check live entry: %w", err)
		}

		counts, err := s.repo.CountEntriesByStatus(lockCtx, queueID)
		if err != nil {
			return fmt.Errorf("count entries: %w", err)
		}
		if counts[EntryWaiting]+counts[EntryInProgress] >= q.MaxCapacity {
			return ErrQueueFull
		}

		now := s.now()
		created, err := s.repo.CreateEntry(lockCtx, &Entry{
			ID:                   uuid.New(),
			QueueID:              queueID,
			PatientID:            req.PatientID,
			Status:               EntryWaiting,
			Priority:             req.Priority,
			Reason:               req.Reason,
			RequestedAt:          req.RequestedAt,
			EstimatedWaitMinutes: q.AvgWaitMinutes,
			JoinedAt:             now,
			UpdatedAt:            now,
		})
		if err != nil {
			if errors.Is(err, ErrDuplicateLiveEntry) {
				// The store's unique index caught a race the lock did not
				// cover; report the existing entry.
				if existing, ferr := s.repo.FindLiveEntryByPatient(lockCtx, req.PatientID); ferr == nil {
					return &AlreadyQueuedError{EntryID: existing.ID, QueueID: existing.QueueID}
				}
				return ErrPatientAlreadyQueued
			}
			return fmt.Errorf("create entry: %w", err)
		}

		entry = created
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrQueueContended
		}
		return nil, err
	}

	s.publishQueueUpdate(ctx, q.HospitalID, queueID, entry.PatientID)

	return entry, nil
}

// UpdateEntryStatus drives one entry through the state machine, persists
// the result, refreshes the queue average when the entry completes, and
// fans the new queue state out.
func (s *Service) UpdateEntryStatus(ctx context.Context, entryID uuid.UUID, to EntryStatus) (*Entry, error) {
	entry, err := s.repo.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	from := entry.Status
	if err := Transition(entry, to, s.now()); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateEntry(ctx, entry, from)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			// Concurrent writer won; the validated transition is stale.
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
		return nil, fmt.Errorf("update entry: %w", err)
	}

	if to == EntryCompleted {
		s.recomputeAverageWait(ctx, updated.QueueID)
	}

	q, err := s.repo.GetQueueByID(ctx, updated.QueueID)
	if err != nil {
		s.log.Warn().Err(err).Stringer("queue_id", updated.QueueID).Msg("load queue for fan-out failed")
		return updated, nil
	}
	s.publishQueueUpdate(ctx, q.HospitalID, q.ID, updated.PatientID)

	return updated, nil
}

// recomputeAverageWait refreshes the rolling average from completed
// history. An empty completed set leaves the stored average untouched so
// new joiners are never quoted an unset value.
func (s *Service) recomputeAverageWait(ctx context.Context, queueID uuid.UUID) {
	avg, ok, err := s.repo.AverageActualWait(ctx, queueID)
	if err != nil {
		s.log.Warn().Err(err).Stringer("queue_id", queueID).Msg("average wait recompute failed")
		return
	}
	if !ok {
		return
	}
	if err := s.repo.SetAverageWait(ctx, queueID, avg); err != nil {
		s.log.Warn().Err(err).Stringer("queue_id", queueID).Msg("average wait store failed")
	}
}

// SetStatus changes the queue lifecycle status. active and paused
// toggle freely; closed is one-way and force-cancels every waiting
// entry without consulting the entry state machine.
func (s *Service) SetStatus(ctx context.Context, queueID uuid.UUID, to Status) (*Queue, error) {
	switch to {
	case StatusActive, StatusPaused, StatusClosed:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidQueueStatus, to)
	}

	q, err := s.repo.GetQueueByID(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if q.Status == StatusClosed {
		return nil, ErrQueueClosed
	}
	if q.Status == to {
		return q, nil
	}

	updated, err := s.repo.UpdateQueueStatus(ctx, queueID, q.Status, to)
	if err != nil {
		if errors.Is(err, ErrQueueNotFound) {
			return nil, ErrQueueClosed
		}
		return nil, fmt.Errorf("update queue status: %w", err)
	}

	if to == StatusClosed {
		cancelled, err := s.repo.CancelWaitingEntries(ctx, queueID, s.now())
		if err != nil {
			return nil, fmt.Errorf("cancel waiting entries: %w", err)
		}
		snap := s.snapshotForPublish(ctx, queueID)
		for _, e := range cancelled {
			s.publishTo(ctx, notify.PatientRoom(e.PatientID), snap)
		}
		s.publishTo(ctx, notify.HospitalRoom(updated.HospitalID), snap)
		return updated, nil
	}

	s.publishQueueUpdate(ctx, updated.HospitalID, queueID, uuid.Nil)

	return updated, nil
}

// Stats returns per-status counts and the current average. Read-only.
func (s *Service) Stats(ctx context.Context, queueID uuid.UUID) (*Stats, error) {
	q, err := s.repo.GetQueueByID(ctx, queueID)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.CountEntriesByStatus(ctx, queueID)
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}

	st := &Stats{
		QueueID:        q.ID,
		Date:           q.Date,
		Status:         q.Status,
		Waiting:        counts[EntryWaiting],
		InProgress:     counts[EntryInProgress],
		Completed:      counts[EntryCompleted],
		NoShow:         counts[EntryNoShow],
		Cancelled:      counts[EntryCancelled],
		AvgWaitMinutes: q.AvgWaitMinutes,
	}
	st.Total = st.Waiting + st.InProgress + st.Completed + st.NoShow + st.Cancelled

	return st, nil
}

// Snapshot returns the queue with its entries in join order.
func (s *Service) Snapshot(ctx context.Context, queueID uuid.UUID) (*Snapshot, error) {
	q, err := s.repo.GetQueueByID(ctx, queueID)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.ListEntries(ctx, queueID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	return &Snapshot{Queue: *q, Entries: entries}, nil
}

func (s *Service) publishQueueUpdate(ctx context.Context, hospitalID, queueID, patientID uuid.UUID) {
	snap := s.snapshotForPublish(ctx, queueID)
	if patientID != uuid.Nil {
		s.publishTo(ctx, notify.PatientRoom(patientID), snap)
	}
	s.publishTo(ctx, notify.HospitalRoom(hospitalID), snap)
}

func (s *Service) snapshotForPublish(ctx context.Context, queueID uuid.UUID) *Snapshot {
	snap, err := s.Snapshot(ctx, queueID)
	if err != nil {
		s.log.Warn().Err(err).Stringer("queue_id", queueID).Msg("queue snapshot for fan-out failed")
		return nil
	}
	return snap
}

func (s *Service) publishTo(ctx context.Context, room string, snap *Snapshot) {
	if snap == nil {
		return
	}
	if err := s.bus.Publish(ctx, room, notify.EventQueueUpdate, snap); err != nil {
		s.log.Warn().Err(err).Str("room", room).Msg("notification publish failed")
	}
}

func queueLockKey(doctorID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("lock:queue:%s:%s", doctorID, date.Format("2006-01-02"))
}

func patientLockKey(patientID uuid.UUID) string {
	return fmt.Sprintf("lock:queuejoin:%s", patientID)
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
