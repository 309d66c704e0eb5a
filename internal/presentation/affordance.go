// Package presentation builds the view models pages render: webinar cards, the registration
// button and the ticket modal.
package presentation

import (
	"github.com/aura-webinar/portal/internal/models"
)

// Action is what pressing an enabled button does.
type Action string

const (
	ActionNone       Action = ""
	ActionRegister   Action = "register"
	ActionViewTicket Action = "view_ticket"
)

// Button labels.
const (
	LabelEventEnded = "Event Ended"
	LabelPending    = "Pending"
	LabelViewTicket = "View Ticket"
	LabelRejected   = "Application Rejected"
	LabelCompleted  = "Completed"
	LabelRegister   = "Register Now"
)

// Button is the registration button on a card or detail page.
type Button struct {
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
	Action   Action `json:"action,omitempty"`
}

// Affordance maps (eventIsPast, status) to the button. A past event wins over any status.
func Affordance(eventIsPast bool, status models.ApplicationStatusView) Button {
	if eventIsPast {
		return Button{Label: LabelEventEnded, Disabled: true}
	}
	if !status.HasApplied {
		return Button{Label: LabelRegister, Action: ActionRegister}
	}
	var s models.ApplicationStatus
	if status.Application != nil {
		s = status.Application.Status
	}
	switch s {
	case models.StatusApproved:
		return Button{Label: LabelViewTicket, Action: ActionViewTicket}
	case models.StatusRejected:
		return Button{Label: LabelRejected, Disabled: true}
	case models.StatusCompleted:
		return Button{Label: LabelCompleted, Disabled: true}
	default:
		return Button{Label: LabelPending, Disabled: true}
	}
}

// Badge is the short status shown on a card, empty when the viewer has not applied.
func Badge(status models.ApplicationStatusView) string {
	if !status.HasApplied || status.Application == nil {
		return ""
	}
	return string(status.Application.Status)
}
