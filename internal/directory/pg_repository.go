package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string
	var hospitalID *uuid.UUID

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&hospitalID,
		&d.Active,
		&d.AvgConsultationMinutes,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	d.HospitalID = hospitalID
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, hospital_id, active, avg_consultation_minutes, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)

	doctor, err := scanDoctor(row)
	if err != nil {
		return nil, err
	}

	slots, err := r.listSlots(ctx, id)
	if err != nil {
		return nil, err
	}
	doctor.Slots = slots

	return doctor, nil
}

func (r *PgRepository) listSlots(ctx context.Context, doctorID uuid.UUID) ([]AvailabilitySlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, weekday, start_time, end_time, enabled
		FROM availability_slots
		WHERE doctor_id = $1
		ORDER BY created_at, id
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []AvailabilitySlot
	for rows.Next() {
		var s AvailabilitySlot
		var weekday int
		if err := rows.Scan(&s.ID, &weekday, &s.Start, &s.End, &s.Enabled); err != nil {
			return nil, err
		}
		s.Weekday = time.Weekday(weekday)
		slots = append(slots, s)
	}

	return slots, rows.Err()
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetHospitalByID(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	var h Hospital

	err := r.pool.QueryRow(ctx, `
		SELECT id, name, timezone, created_at, updated_at
		FROM hospitals
		WHERE id = $1
	`, id).Scan(&h.ID, &h.Name, &h.Timezone, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHospitalNotFound
		}
		return nil, err
	}

	return &h, nil
}

func (r *PgRepository) ListSchedulableDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty, hospital_id, active, avg_consultation_minutes, created_at, updated_at
		FROM doctors
		WHERE active AND hospital_id IS NOT NULL
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	return result, rows.Err()
}
