package booking

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

const appointmentColumns = `
	id, patient_id, doctor_id, hospital_id, appt_date, start_time, end_time,
	queue_position, status, approved_by, approved_at, approval_message,
	reason, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var hospitalID, approvedBy *uuid.UUID
	var approvedAt *time.Time
	var approvalMessage *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&hospitalID,
		&a.Date,
		&a.StartTime,
		&a.EndTime,
		&a.QueuePosition,
		&a.Status,
		&approvedBy,
		&approvedAt,
		&approvalMessage,
		&a.Reason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.HospitalID = hospitalID
	a.ApprovedBy = approvedBy
	a.ApprovedAt = approvedAt
	a.ApprovalMessage = approvalMessage
	return &a, nil
}

func (r *PgRepository) MaxQueuePosition(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error) {
	var max int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(queue_position), 0)
		FROM appointments
		WHERE doctor_id = $1 AND appt_date = $2
	`, doctorID, date).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, hospital_id, appt_date, start_time, end_time,
			queue_position, status, reason, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.PatientID, a.DoctorID, a.HospitalID, a.Date, a.StartTime, a.EndTime,
		a.QueuePosition, a.Status, a.Reason)

	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, approval *ApprovalUpdate) (*Appointment, error) {
	var approvedBy *uuid.UUID
	var approvalMessage *string
	if approval != nil {
		approvedBy = &approval.By
		approvalMessage = &approval.Message
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    approved_by = COALESCE($4, approved_by),
		    approved_at = CASE WHEN $4::uuid IS NULL THEN approved_at ELSE now() END,
		    approval_message = COALESCE($5, approval_message),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from, approvedBy, approvalMessage)

	return scanAppointment(row)
}

func (r *PgRepository) AppendMessage(ctx context.Context, m Message) (*Message, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO appointment_messages (id, appointment_id, sender_id, body, read, created_at)
		VALUES ($1, $2, $3, $4, false, now())
		RETURNING id, appointment_id, sender_id, body, read, created_at
	`, m.ID, m.AppointmentID, m.SenderID, m.Body).Scan(
		&m.ID, &m.AppointmentID, &m.SenderID, &m.Body, &m.Read, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PgRepository) ListMessages(ctx context.Context, appointmentID uuid.UUID) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, sender_id, body, read, created_at
		FROM appointment_messages
		WHERE appointment_id = $1
		ORDER BY created_at, id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.AppointmentID, &m.SenderID, &m.Body, &m.Read, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND appt_date = $2
		ORDER BY queue_position
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appt_date DESC, start_time DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}
