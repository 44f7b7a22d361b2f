package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// ApprovalUpdate carries the approval metadata recorded when an
// appointment enters approved or rejected.
type ApprovalUpdate struct {
	By      uuid.UUID
	Message string
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// MaxQueuePosition returns the highest position assigned for the
	// doctor+date, 0 when none. Only meaningful inside the per-key lock.
	MaxQueuePosition(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error)

	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateAppointmentStatus is a compare-and-set on status; it returns
	// ErrAppointmentNotFound when the row is absent or no longer in the
	// `from` status.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, approval *ApprovalUpdate) (*Appointment, error)

	AppendMessage(ctx context.Context, m Message) (*Message, error)
	ListMessages(ctx context.Context, appointmentID uuid.UUID) ([]Message, error)

	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
}
