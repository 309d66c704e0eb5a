package store

import (
	"time"
)

// OpStatus is the lifecycle of one store operation.
type OpStatus string

const (
	OpIdle    OpStatus = "idle"
	OpLoading OpStatus = "loading"
	OpError   OpStatus = "error"
	OpSuccess OpStatus = "success"
)

// Operation names, used as state keys (optionally suffixed with a subject ID).
const (
	OpFetchUpcoming     = "fetchUpcomingWebinars"
	OpFetchWebinar      = "fetchWebinar"
	OpFetchAdmin        = "fetchAdminWebinars"
	OpFetchApplicants   = "fetchWebinarApplicants"
	OpFetchTickets      = "fetchUserTickets"
	OpFetchApplications = "fetchMyApplications"
	OpApply             = "applyForWebinar"
	OpInitPayment       = "initializePayment"
	OpConfirmPayment    = "confirmPayment"
	OpApprove           = "approveApplication"
	OpReject            = "rejectApplication"
	OpPublish           = "publishWebinar"
	OpUnpublish         = "unpublishWebinar"
	OpCreate            = "createWebinar"
	OpUpdate            = "updateWebinar"
)

// OpState is the per-operation result slot replacing a shared loading/error pair.
type OpState struct {
	Status    OpStatus  `json:"status"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Loading reports whether the operation is in flight.
func (s OpState) Loading() bool { return s.Status == OpLoading }

// OpKey builds the state key for an operation on a subject.
func OpKey(op, subject string) string {
	if subject == "" {
		return op
	}
	return op + ":" + subject
}
