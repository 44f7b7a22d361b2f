package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound   = errors.New("doctor not found")
	ErrPatientNotFound  = errors.New("patient not found")
	ErrHospitalNotFound = errors.New("hospital not found")
)

// Repository is the read contract the scheduling core consumes. Doctor
// lookups include the availability slot set in declared order.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetHospitalByID(ctx context.Context, id uuid.UUID) (*Hospital, error)

	// ListSchedulableDoctors returns doctors that are active and
	// assigned to a hospital, without slots.
	ListSchedulableDoctors(ctx context.Context) ([]Doctor, error)
}
