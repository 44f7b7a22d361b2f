package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue/internal/directory"
	"github.com/hackgods/clinic-queue/internal/queue"
	"github.com/hackgods/clinic-queue/internal/redisclient"
)

func joinQueueHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queueID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_queue_id", "id must be a valid UUID")
			return
		}

		var req JoinQueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		join := queue.JoinRequest{
			PatientID: patientID,
			Reason:    req.Reason,
			Priority:  queue.Priority(req.Priority),
		}
		if req.RequestedAt != nil {
			join.RequestedAt = *req.RequestedAt
		}

		entry, err := svc.Join(r.Context(), queueID, join)
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, entry)
	}
}

func getQueueHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queueID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_queue_id", "id must be a valid UUID")
			return
		}

		snap, err := svc.Snapshot(r.Context(), queueID)
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, snap)
	}
}

func queueStatsHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queueID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_queue_id", "id must be a valid UUID")
			return
		}

		stats, err := svc.Stats(r.Context(), queueID)
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, stats)
	}
}

func setQueueStatusHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queueID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_queue_id", "id must be a valid UUID")
			return
		}

		var req SetQueueStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		q, err := svc.SetStatus(r.Context(), queueID, queue.Status(req.Status))
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, q)
	}
}

func updateEntryStatusHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_entry_id", "id must be a valid UUID")
			return
		}

		var req UpdateEntryStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		entry, err := svc.UpdateEntryStatus(r.Context(), entryID, queue.EntryStatus(req.Status))
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, entry)
	}
}

// ensureQueueHandler lazily creates today's queue for a doctor; the
// generator normally gets there first, so this usually just reads.
func ensureQueueHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		q, err := svc.EnsureQueue(r.Context(), doctorID, time.Now())
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, q)
	}
}

func handleQueueError(w http.ResponseWriter, err error) {
	var alreadyQueued *queue.AlreadyQueuedError

	switch {
	case errors.Is(err, queue.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, directory.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, directory.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, queue.ErrQueueNotFound):
		writeError(w, http.StatusNotFound, "queue_not_found", err.Error())
	case errors.Is(err, queue.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "entry_not_found", err.Error())
	case errors.As(err, &alreadyQueued):
		writeJSON(w, http.StatusConflict, struct {
			Error   string    `json:"error"`
			Details string    `json:"details"`
			EntryID uuid.UUID `json:"entry_id"`
			QueueID uuid.UUID `json:"queue_id"`
		}{
			Error:   "patient_already_queued",
			Details: err.Error(),
			EntryID: alreadyQueued.EntryID,
			QueueID: alreadyQueued.QueueID,
		})
	case errors.Is(err, queue.ErrPatientAlreadyQueued):
		writeError(w, http.StatusConflict, "patient_already_queued", err.Error())
	case errors.Is(err, queue.ErrQueueNotActive):
		writeError(w, http.StatusConflict, "queue_not_active", err.Error())
	case errors.Is(err, queue.ErrQueueClosed):
		writeError(w, http.StatusConflict, "queue_closed", err.Error())
	case errors.Is(err, queue.ErrQueueFull):
		writeError(w, http.StatusConflict, "queue_full", err.Error())
	case errors.Is(err, queue.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, queue.ErrInvalidQueueStatus):
		writeError(w, http.StatusBadRequest, "invalid_queue_status", err.Error())
	case errors.Is(err, queue.ErrDoctorNotSchedulable):
		writeError(w, http.StatusConflict, "doctor_not_schedulable", err.Error())
	case errors.Is(err, queue.ErrQueueContended),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "queue_contended", "a conflicting queue operation is in progress, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
