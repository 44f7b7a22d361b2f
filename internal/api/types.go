package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue/internal/booking"
)

type BookAppointmentRequest struct {
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`       // YYYY-MM-DD
	StartTime string `json:"start_time"` // HH:MM
	Reason    string `json:"reason,omitempty"`
}

type UpdateAppointmentStatusRequest struct {
	Status  string `json:"status"`
	ActorID string `json:"actor_id"`
	Message string `json:"message,omitempty"`
}

type AddMessageRequest struct {
	SenderID string `json:"sender_id"`
	Body     string `json:"body"`
}

type MessageResponse struct {
	ID        uuid.UUID `json:"id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type AppointmentResponse struct {
	ID              uuid.UUID         `json:"id"`
	PatientID       uuid.UUID         `json:"patient_id"`
	DoctorID        uuid.UUID         `json:"doctor_id"`
	HospitalID      *uuid.UUID        `json:"hospital_id,omitempty"`
	Date            string            `json:"date"`
	StartTime       string            `json:"start_time"`
	EndTime         string            `json:"end_time"`
	EndsNextDay     bool              `json:"ends_next_day"`
	QueuePosition   int               `json:"queue_position"`
	Status          string            `json:"status"`
	ApprovedBy      *uuid.UUID        `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time        `json:"approved_at,omitempty"`
	ApprovalMessage *string           `json:"approval_message,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	Messages        []MessageResponse `json:"messages,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

type JoinQueueRequest struct {
	PatientID   string     `json:"patient_id"`
	Reason      string     `json:"reason,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	RequestedAt *time.Time `json:"requested_at,omitempty"`
}

type UpdateEntryStatusRequest struct {
	Status string `json:"status"`
}

type SetQueueStatusRequest struct {
	Status string `json:"status"`
}

type NextSlotResponse struct {
	DoctorID uuid.UUID  `json:"doctor_id"`
	NextSlot *time.Time `json:"next_slot"` // null when nothing within 7 days
}

func toAppointmentResponse(a *booking.Appointment, msgs []booking.Message) AppointmentResponse {
	resp := AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		HospitalID:      a.HospitalID,
		Date:            a.Date.Format("2006-01-02"),
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		EndsNextDay:     a.EndsNextDay(),
		QueuePosition:   a.QueuePosition,
		Status:          string(a.Status),
		ApprovedBy:      a.ApprovedBy,
		ApprovedAt:      a.ApprovedAt,
		ApprovalMessage: a.ApprovalMessage,
		Reason:          a.Reason,
		CreatedAt:       a.CreatedAt,
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, toMessageResponse(m))
	}
	return resp
}

func toMessageResponse(m booking.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Body:      m.Body,
		Read:      m.Read,
		CreatedAt: m.CreatedAt,
	}
}
