package queue

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTransition = errors.New("invalid queue entry status transition")

var entryTransitions = map[EntryStatus]map[EntryStatus]bool{
	EntryWaiting: {
		EntryInProgress: true,
		EntryNoShow:     true,
		EntryCancelled:  true,
	},
	EntryInProgress: {
		EntryCompleted: true,
	},
}

// CanTransition reports whether from -> to is a legal entry transition.
func CanTransition(from, to EntryStatus) bool {
	return entryTransitions[from][to]
}

// Transition applies to the entry with its side effects: entering
// in_progress stamps the consultation start; entering completed stamps
// the end and derives the actual wait from requested time to
// consultation start, clamped to >= 0.
func Transition(e *Entry, to EntryStatus, now time.Time) error {
	if !CanTransition(e.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, to)
	}
	applyStatus(e, to, now)
	return nil
}

func applyStatus(e *Entry, to EntryStatus, now time.Time) {
	switch to {
	case EntryInProgress:
		e.ConsultationStartedAt = &now
	case EntryCompleted:
		e.ConsultationEndedAt = &now
		if e.ConsultationStartedAt != nil {
			waited := int(e.ConsultationStartedAt.Sub(e.RequestedAt).Minutes())
			if waited < 0 {
				waited = 0
			}
			e.ActualWaitMinutes = &waited
		}
	}
	e.Status = to
	e.UpdatedAt = now
}
