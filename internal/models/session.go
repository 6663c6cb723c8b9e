package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrIllegalTransition marks a rejected state machine step.
var ErrIllegalTransition = errors.New("illegal session transition")

// SessionStatus is the persisted lifecycle state of a session.
type SessionStatus string

const (
	StatusProposed  SessionStatus = "proposed"
	StatusConfirmed SessionStatus = "confirmed"
	StatusCancelled SessionStatus = "cancelled"
	StatusCompleted SessionStatus = "completed"
)

// DefaultDurationMinutes is used when a session is created without an
// explicit duration.
const DefaultDurationMinutes = 120

// checkinLeadTime is how long before the scheduled start check-ins open.
const checkinLeadTime = 15 * time.Minute

// Session represents a single scheduled occurrence a squad plans to
// attend together.
type Session struct {
	ID              string
	SquadID         string
	Title           string
	ScheduledAt     int64
	DurationMinutes int
	Status          SessionStatus
	CreatedBy       string
	CreatedAt       int64
}

// validTransitions enumerates the forward-only state machine. Cancelled
// and completed are terminal. Completed is never written by mutation
// paths; it is derived from time via EffectiveStatus.
var validTransitions = map[SessionStatus][]SessionStatus{
	StatusProposed:  {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
}

// CanTransition reports whether moving from the session's current status
// to target is a legal state machine step.
func (s *Session) CanTransition(target SessionStatus) bool {
	for _, next := range validTransitions[s.Status] {
		if next == target {
			return true
		}
	}
	return false
}

// Transition moves the session to target, or returns an error naming the
// rejected step.
func (s *Session) Transition(target SessionStatus) error {
	if !s.CanTransition(target) {
		return fmt.Errorf("%w: cannot move session from %s to %s", ErrIllegalTransition, s.Status, target)
	}
	s.Status = target
	return nil
}

// EndsAt returns the Unix timestamp when the session is over.
func (s *Session) EndsAt() int64 {
	return s.ScheduledAt + int64(s.DurationMinutes)*60
}

// EffectiveStatus returns the status as the UI should see it: a confirmed
// session whose window has passed reads as completed, without a stored
// write.
func (s *Session) EffectiveStatus(now time.Time) SessionStatus {
	if s.Status == StatusConfirmed && now.Unix() >= s.EndsAt() {
		return StatusCompleted
	}
	return s.Status
}

// CheckinOpen reports whether now falls inside the bounded check-in
// window: from 15 minutes before the scheduled start until the session
// ends.
func (s *Session) CheckinOpen(now time.Time) bool {
	opens := s.ScheduledAt - int64(checkinLeadTime.Seconds())
	return now.Unix() >= opens && now.Unix() < s.EndsAt()
}
