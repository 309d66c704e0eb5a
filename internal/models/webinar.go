package models

import (
	"time"
)

// Webinar represents a scheduled session a viewer can register for.
type Webinar struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	Capacity        int        `json:"capacity"`
	Price           *float64   `json:"price"` // nil or 0 means free
	RequiresPayment bool       `json:"requires_payment"`
	Currency        string     `json:"currency,omitempty"`
	Location        string     `json:"location"`
	Speaker         string     `json:"speaker"`
	DurationMinutes int        `json:"duration"`
	IsPublished     bool       `json:"is_published"`
	Questions       []Question `json:"questions"`
	ApplicantsCount int        `json:"applicants_count"`
	ImageURL        string     `json:"image_url,omitempty"`
}

// IsPaid reports whether registering requires the payment path.
func (w *Webinar) IsPaid() bool {
	return w.RequiresPayment || w.Amount() > 0
}

// Amount returns the ticket price, zero when free.
func (w *Webinar) Amount() float64 {
	if w.Price == nil {
		return 0
	}
	return *w.Price
}

// EndsAt returns the scheduled end (start + duration).
func (w *Webinar) EndsAt() time.Time {
	return w.ScheduledAt.Add(time.Duration(w.DurationMinutes) * time.Minute)
}

// HasEnded reports whether the event is already past at now.
func (w *Webinar) HasEnded(now time.Time) bool {
	if w.ScheduledAt.IsZero() {
		return false
	}
	return now.After(w.EndsAt())
}

// HasQuestions reports whether the organizer attached a registration form.
func (w *Webinar) HasQuestions() bool {
	return len(w.Questions) > 0
}

// WebinarInput is the admin create/update form.
type WebinarInput struct {
	Title           string          `json:"title" validate:"required,min=3"`
	Description     string          `json:"description"`
	ScheduledAt     time.Time       `json:"scheduled_at" validate:"required"`
	Capacity        int             `json:"capacity" validate:"gte=0"`
	Price           *float64        `json:"price" validate:"omitempty,gte=0"`
	RequiresPayment bool            `json:"requires_payment"`
	Currency        string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	Location        string          `json:"location"`
	Speaker         string          `json:"speaker"`
	DurationMinutes int             `json:"duration" validate:"gte=0"`
	ImageURL        string          `json:"image_url,omitempty"`
	Questions       []QuestionInput `json:"questions" validate:"dive"`
}

// QuestionInput is one organizer-defined registration question in WebinarInput.
type QuestionInput struct {
	ID       string       `json:"id,omitempty"`
	Type     QuestionType `json:"type" validate:"required,oneof=text textarea radio checkbox select"`
	Prompt   string       `json:"question" validate:"required"`
	Options  []string     `json:"options,omitempty" validate:"required_if=Type radio,required_if=Type checkbox,required_if=Type select"`
	Required *bool        `json:"required,omitempty"`
}
