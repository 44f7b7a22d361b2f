package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueNotFound = errors.New("queue not found")
	ErrEntryNotFound = errors.New("queue entry not found")

	// ErrDuplicateQueue surfaces the unique constraint on (doctor, date).
	ErrDuplicateQueue = errors.New("queue already exists for doctor and date")

	// ErrDuplicateLiveEntry surfaces the partial unique index that backs
	// the cross-queue one-live-entry-per-patient invariant.
	ErrDuplicateLiveEntry = errors.New("patient already has a live queue entry")
)

// Repository contains all DB interactions needed by the queue service.
type Repository interface {
	CreateQueue(ctx context.Context, q *Queue) (*Queue, error)
	GetQueueByID(ctx context.Context, id uuid.UUID) (*Queue, error)
	GetQueueByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Queue, error)

	// UpdateQueueStatus is a compare-and-set on status; it returns
	// ErrQueueNotFound when the queue is absent or no longer `from`.
	UpdateQueueStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Queue, error)
	SetAverageWait(ctx context.Context, id uuid.UUID, minutes int) error

	CreateEntry(ctx context.Context, e *Entry) (*Entry, error)
	GetEntryByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// UpdateEntry persists the entry's mutable fields compare-and-set on
	// the previous status.
	UpdateEntry(ctx context.Context, e *Entry, from EntryStatus) (*Entry, error)

	// FindLiveEntryByPatient returns the patient's entry in
	// waiting/in_progress across all queues, or ErrEntryNotFound.
	FindLiveEntryByPatient(ctx context.Context, patientID uuid.UUID) (*Entry, error)

	// CancelWaitingEntries force-cancels every waiting entry of the queue
	// and returns the affected entries. Used only by queue close.
	CancelWaitingEntries(ctx context.Context, queueID uuid.UUID, now time.Time) ([]Entry, error)

	// ListEntries returns the queue's entries ordered by join time.
	ListEntries(ctx context.Context, queueID uuid.UUID) ([]Entry, error)

	CountEntriesByStatus(ctx context.Context, queueID uuid.UUID) (map[EntryStatus]int, error)

	// AverageActualWait averages actual_wait_minutes over completed
	// entries with a positive wait; ok is false when there are none.
	AverageActualWait(ctx context.Context, queueID uuid.UUID) (minutes int, ok bool, err error)
}
