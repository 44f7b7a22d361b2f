package directory

import (
	"time"

	"github.com/google/uuid"
)

// AvailabilitySlot is one recurring weekly window in which a doctor
// accepts appointments. Start and End are zero-padded 24h "HH:MM"
// strings so lexicographic comparison orders them chronologically.
type AvailabilitySlot struct {
	ID      uuid.UUID    `json:"id"`
	Weekday time.Weekday `json:"weekday"`
	Start   string       `json:"start"`
	End     string       `json:"end"`
	Enabled bool         `json:"enabled"`
}

type Hospital struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Doctor struct {
	ID                     uuid.UUID          `json:"id"`
	Name                   string             `json:"name"`
	Specialty              *string            `json:"specialty,omitempty"`
	HospitalID             *uuid.UUID         `json:"hospital_id,omitempty"`
	Active                 bool               `json:"active"`
	AvgConsultationMinutes int                `json:"avg_consultation_minutes"`
	Slots                  []AvailabilitySlot `json:"availability_slots,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

type Patient struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
