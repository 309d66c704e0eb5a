package models

import (
	"time"
)

// Ticket is proof of a confirmed seat, issued once per finalized application.
type Ticket struct {
	ID        string    `json:"id,omitempty"`
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issued_at"`
	WebinarID string    `json:"webinar_id"`
}
