package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Appointment is a discrete booking against a doctor's weekly
// availability. The queue position is assigned once at creation and
// never reassigned; cancellation is soft (status only).
type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	HospitalID      *uuid.UUID
	Date            time.Time // calendar date, time part zero
	StartTime       string    // "HH:MM"
	EndTime         string    // "HH:MM", may wrap past midnight
	QueuePosition   int
	Status          Status
	ApprovedBy      *uuid.UUID
	ApprovedAt      *time.Time
	ApprovalMessage *string
	Reason          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EndsNextDay reports whether the derived end time wrapped past
// midnight. Fixed-width "HH:MM" makes the string comparison valid.
func (a *Appointment) EndsNextDay() bool {
	return a.EndTime < a.StartTime
}

// Message is an append-only note on an appointment thread.
type Message struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	SenderID      uuid.UUID
	Body          string
	Read          bool
	CreatedAt     time.Time
}
