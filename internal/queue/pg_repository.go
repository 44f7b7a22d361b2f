package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const queueColumns = `
	id, hospital_id, doctor_id, queue_date, status, max_capacity,
	avg_wait_minutes, created_at, updated_at`

const entryColumns = `
	id, queue_id, patient_id, status, priority, reason, requested_at,
	estimated_wait_minutes, actual_wait_minutes, consultation_started_at,
	consultation_ended_at, joined_at, updated_at`

func scanQueue(row pgx.Row) (*Queue, error) {
	var q Queue

	err := row.Scan(
		&q.ID,
		&q.HospitalID,
		&q.DoctorID,
		&q.Date,
		&q.Status,
		&q.MaxCapacity,
		&q.AvgWaitMinutes,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQueueNotFound
		}
		return nil, err
	}

	return &q, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var actualWait *int
	var startedAt, endedAt *time.Time

	err := row.Scan(
		&e.ID,
		&e.QueueID,
		&e.PatientID,
		&e.Status,
		&e.Priority,
		&e.Reason,
		&e.RequestedAt,
		&e.EstimatedWaitMinutes,
		&actualWait,
		&startedAt,
		&endedAt,
		&e.JoinedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	e.ActualWaitMinutes = actualWait
	e.ConsultationStartedAt = startedAt
	e.ConsultationEndedAt = endedAt
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Interface methods

func (r *PgRepository) CreateQueue(ctx context.Context, q *Queue) (*Queue, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO queues (id, hospital_id, doctor_id, queue_date, status, max_capacity, avg_wait_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+queueColumns+`
	`, q.ID, q.HospitalID, q.DoctorID, q.Date, q.Status, q.MaxCapacity, q.AvgWaitMinutes)

	created, err := scanQueue(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateQueue
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetQueueByID(ctx context.Context, id uuid.UUID) (*Queue, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+queueColumns+`
		FROM queues
		WHERE id = $1
	`, id)
	return scanQueue(row)
}

func (r *PgRepository) GetQueueByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Queue, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+queueColumns+`
		FROM queues
		WHERE doctor_id = $1 AND queue_date = $2
	`, doctorID, date)
	return scanQueue(row)
}

func (r *PgRepository) UpdateQueueStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Queue, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE queues
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+queueColumns+`
	`, id, to, from)

	return scanQueue(row)
}

func (r *PgRepository) SetAverageWait(ctx context.Context, id uuid.UUID, minutes int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE queues
		SET avg_wait_minutes = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, minutes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQueueNotFound
	}
	return nil
}

func (r *PgRepository) CreateEntry(ctx context.Context, e *Entry) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO queue_entries (
			id, queue_id, patient_id, status, priority, reason, requested_at,
			estimated_wait_minutes, joined_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING `+entryColumns+`
	`, e.ID, e.QueueID, e.PatientID, e.Status, e.Priority, e.Reason,
		e.RequestedAt, e.EstimatedWaitMinutes, e.JoinedAt)

	created, err := scanEntry(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateLiveEntry
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetEntryByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE id = $1
	`, id)
	return scanEntry(row)
}

func (r *PgRepository) UpdateEntry(ctx context.Context, e *Entry, from EntryStatus) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = $2,
		    actual_wait_minutes = $3,
		    consultation_started_at = $4,
		    consultation_ended_at = $5,
		    updated_at = now()
		WHERE id = $1
		  AND status = $6
		RETURNING `+entryColumns+`
	`, e.ID, e.Status, e.ActualWaitMinutes, e.ConsultationStartedAt, e.ConsultationEndedAt, from)

	return scanEntry(row)
}

func (r *PgRepository) FindLiveEntryByPatient(ctx context.Context, patientID uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE patient_id = $1 AND status IN ('waiting', 'in_progress')
	`, patientID)
	return scanEntry(row)
}

func (r *PgRepository) CancelWaitingEntries(ctx context.Context, queueID uuid.UUID, now time.Time) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE queue_entries
		SET status = 'cancelled',
		    updated_at = $2
		WHERE queue_id = $1
		  AND status = 'waiting'
		RETURNING `+entryColumns+`
	`, queueID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

func (r *PgRepository) ListEntries(ctx context.Context, queueID uuid.UUID) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE queue_id = $1
		ORDER BY joined_at, id
	`, queueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

func (r *PgRepository) CountEntriesByStatus(ctx context.Context, queueID uuid.UUID) (map[EntryStatus]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM queue_entries
		WHERE queue_id = $1
		GROUP BY status
	`, queueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[EntryStatus]int)
	for rows.Next() {
		var status EntryStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}

	return counts, rows.Err()
}

func (r *PgRepository) AverageActualWait(ctx context.Context, queueID uuid.UUID) (int, bool, error) {
	var avg *float64
	err := r.pool.QueryRow(ctx, `
		SELECT AVG(actual_wait_minutes)
		FROM queue_entries
		WHERE queue_id = $1
		  AND status = 'completed'
		  AND actual_wait_minutes > 0
	`, queueID).Scan(&avg)
	if err != nil {
		return 0, false, err
	}
	if avg == nil {
		return 0, false, nil
	}
	return int(*avg + 0.5), true, nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}
