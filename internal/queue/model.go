package queue

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusClosed Status = "closed"
)

type EntryStatus string

const (
	EntryWaiting    EntryStatus = "waiting"
	EntryInProgress EntryStatus = "in_progress"
	EntryCompleted  EntryStatus = "completed"
	EntryNoShow     EntryStatus = "no_show"
	EntryCancelled  EntryStatus = "cancelled"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Queue is the daily walk-in queue for one doctor: exactly one exists
// per (doctor, calendar date).
type Queue struct {
	ID             uuid.UUID `json:"id"`
	HospitalID     uuid.UUID `json:"hospital_id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	Date           time.Time `json:"date"`
	Status         Status    `json:"status"`
	MaxCapacity    int       `json:"max_capacity"`
	AvgWaitMinutes int       `json:"avg_wait_minutes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Entry is one patient's presence in a queue. Priority is advisory
// metadata; ordering is strictly by join time. The estimated wait is a
// point-in-time copy of the queue average at join, never recomputed.
type Entry struct {
	ID                    uuid.UUID   `json:"id"`
	QueueID               uuid.UUID   `json:"queue_id"`
	PatientID             uuid.UUID   `json:"patient_id"`
	Status                EntryStatus `json:"status"`
	Priority              Priority    `json:"priority"`
	Reason                string      `json:"reason,omitempty"`
	RequestedAt           time.Time   `json:"requested_at"`
	EstimatedWaitMinutes  int         `json:"estimated_wait_minutes"`
	ActualWaitMinutes     *int        `json:"actual_wait_minutes,omitempty"`
	ConsultationStartedAt *time.Time  `json:"consultation_started_at,omitempty"`
	ConsultationEndedAt   *time.Time  `json:"consultation_ended_at,omitempty"`
	JoinedAt              time.Time   `json:"joined_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// Snapshot is the full queue state; it is the payload of every
// queue:update event.
type Snapshot struct {
	Queue
	Entries []Entry `json:"entries"`
}

// Stats are per-status counts plus the current rolling average.
type Stats struct {
	QueueID        uuid.UUID `json:"queue_id"`
	Date           time.Time `json:"date"`
	Status         Status    `json:"status"`
	Waiting        int       `json:"waiting"`
	InProgress     int       `json:"in_progress"`
	Completed      int       `json:"completed"`
	NoShow         int       `json:"no_show"`
	Cancelled      int       `json:"cancelled"`
	Total          int       `json:"total"`
	AvgWaitMinutes int       `json:"avg_wait_minutes"`
}
