package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-queue/internal/availability"
	"github.com/hackgods/clinic-queue/internal/directory"
	"github.com/hackgods/clinic-queue/internal/notify"
	"github.com/hackgods/clinic-queue/internal/redisclient"
)

const defaultConsultationMinutes = 15

var (
	ErrInvalidRequest    = errors.New("invalid booking request")
	ErrSlotUnavailable   = errors.New("doctor is not available at the requested time")
	ErrPositionContended = errors.New("another booking for this doctor is in progress, please retry")
	ErrInvalidTransition = errors.New("invalid appointment status transition")
	ErrEmptyMessage      = errors.New("message body must not be empty")
)

var statusTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCompleted, StatusCancelled},
}

func canTransition(from, to Status) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Service struct {
	repo   Repository
	dir    directory.Repository
	locker redisclient.Locker
	bus    notify.Bus
	log    zerolog.Logger
}

func NewService(repo Repository, dir directory.Repository, locker redisclient.Locker, bus notify.Bus, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		dir:    dir,
		locker: locker,
		bus:    bus,
		log:    log,
	}
}

type BookRequest struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	StartTime string // "HH:MM"
	Reason    string
}

// Book validates the request against the doctor's weekly availability
// and creates a pending appointment. The read-max-increment on the queue
// position runs inside a per-(doctor,date) lock so concurrent bookers
// cannot observe the same maximum.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalidRequest)
	}
	if req.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctor_id is required", ErrInvalidRequest)
	}
	if req.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidRequest)
	}
	hh, mm, ok := availability.ParseClock(req.StartTime)
	if !ok {
		return nil, fmt.Errorf("%w: start_time must be HH:MM", ErrInvalidRequest)
	}

	if _, err := s.dir.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, directory.ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	doctor, err := s.dir.GetDoctorByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	date := truncateToDate(req.Date)
	at := time.Date(date.Year(), date.Month(), date.Day(), hh, mm, 0, 0, date.Location())
	if !availability.IsAvailableAt(doctor.Slots, at) {
		return nil, ErrSlotUnavailable
	}

	minutes := doctor.AvgConsultationMinutes
	if minutes <= 0 {
		minutes = defaultConsultationMinutes
	}
	endTime, _ := availability.AddMinutes(req.StartTime, minutes)

	var created *Appointment

	key := positionLockKey(req.DoctorID, date)
	err = s.locker.WithLock(ctx, key, func(lockCtx context.Context) error {
		maxPos, err := s.repo.MaxQueuePosition(lockCtx, req.DoctorID, date)
		if err != nil {
			return fmt.Errorf("read max queue position: %w", err)
		}

		appt := &Appointment{
			ID:            uuid.New(),
			PatientID:     req.PatientID,
			DoctorID:      req.DoctorID,
			HospitalID:    doctor.HospitalID,
			Date:          date,
			StartTime:     req.StartTime,
			EndTime:       endTime,
			QueuePosition: maxPos + 1,
			Status:        StatusPending,
			Reason:        req.Reason,
		}

		created, err = s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrPositionContended
		}
		return nil, err
	}

	return created, nil
}

// UpdateStatus moves an appointment through its lifecycle. Approval
// metadata is recorded when the new status is approved or rejected. The
// new state is fanned out to both parties' rooms; publish failures never
// undo the mutation.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, actorID uuid.UUID, message string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canTransition(appt.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}

	var approval *ApprovalUpdate
	if to == StatusApproved || to == StatusRejected {
		approval = &ApprovalUpdate{By: actorID, Message: message}
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to, approval)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The status moved under us; the transition we validated no
			// longer applies.
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.publish(ctx, notify.EventAppointmentUpdate, updated, updated)

	return updated, nil
}

// AddMessage appends to the appointment's message thread and notifies
// both parties.
func (s *Service) AddMessage(ctx context.Context, appointmentID, senderID uuid.UUID, body string) (*Message, error) {
	if body == "" {
		return nil, ErrEmptyMessage
	}
	if senderID == uuid.Nil {
		return nil, fmt.Errorf("%w: sender_id is required", ErrInvalidRequest)
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	msg, err := s.repo.AppendMessage(ctx, Message{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		SenderID:      senderID,
		Body:          body,
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	s.publish(ctx, notify.EventAppointmentMessage, appt, msg)

	return msg, nil
}

// Get returns the appointment with its message thread.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, []Message, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	msgs, err := s.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list messages: %w", err)
	}

	return appt, msgs, nil
}

func (s *Service) ListForDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	return s.repo.ListByDoctorDate(ctx, doctorID, truncateToDate(date))
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// NextSlot computes the doctor's next bookable slot start after from.
func (s *Service) NextSlot(ctx context.Context, doctorID uuid.UUID, from time.Time) (*time.Time, error) {
	doctor, err := s.dir.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return availability.NextAvailableSlot(doctor.Slots, from), nil
}

func (s *Service) publish(ctx context.Context, event string, appt *Appointment, payload any) {
	rooms := []string{
		notify.PatientRoom(appt.PatientID),
		notify.DoctorRoom(appt.DoctorID),
		notify.UserRoom(appt.PatientID),
		notify.UserRoom(appt.DoctorID),
	}
	for _, room := range rooms {
		if err := s.bus.Publish(ctx, room, event, payload); err != nil {
			s.log.Warn().Err(err).Str("event", event).Str("room", room).Msg("notification publish failed")
		}
	}
}

func positionLockKey(doctorID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("lock:apptpos:%s:%s", doctorID, date.Format("2006-01-02"))
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
