package models

import (
	"time"
)

// ApplicationStatus is the lifecycle state of an application.
type ApplicationStatus string

const (
	StatusApplied   ApplicationStatus = "Applied"
	StatusApproved  ApplicationStatus = "Approved"
	StatusRejected  ApplicationStatus = "Rejected"
	StatusCompleted ApplicationStatus = "Completed"
)

// CanTransition reports whether from → to is a legal lifecycle move.
func (from ApplicationStatus) CanTransition(to ApplicationStatus) bool {
	switch from {
	case StatusApplied:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved:
		return to == StatusCompleted
	}
	return false
}

// Confirmed reports whether the status holds a seat (ticket-bearing).
func (s ApplicationStatus) Confirmed() bool {
	return s == StatusApproved || s == StatusCompleted
}

// MayHoldTicket reports whether a ticket issued with this status is kept. A free registration may
// come back Applied with its ticket; only Rejected applications never carry one.
func (s ApplicationStatus) MayHoldTicket() bool {
	return s != StatusRejected
}

// Application links the viewer to one webinar.
type Application struct {
	ID        string            `json:"id"`
	WebinarID string            `json:"webinar_id"`
	UserID    string            `json:"user_id,omitempty"`
	Status    ApplicationStatus `json:"status"`
	Answers   Answers           `json:"answers,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Ticket    *Ticket           `json:"ticket,omitempty"`
	Applicant *UserPublic       `json:"applicant,omitempty"`
}

// ApplicationStatusView is the derived per-webinar status for the current viewer.
type ApplicationStatusView struct {
	HasApplied  bool         `json:"has_applied"`
	Application *Application `json:"application,omitempty"`
}
