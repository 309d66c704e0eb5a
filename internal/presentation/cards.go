package presentation

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/aura-webinar/portal/internal/models"
)

// Resolver resolves image paths. *assets.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, ref string) string
}

// Card is a webinar tile in listings and the body of the detail page.
type Card struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Speaker         string            `json:"speaker,omitempty"`
	Location        string            `json:"location,omitempty"`
	ScheduledAt     time.Time         `json:"scheduled_at"`
	EndsAt          time.Time         `json:"ends_at"`
	DurationMinutes int               `json:"duration"`
	PriceLabel      string            `json:"price_label"`
	IsPaid          bool              `json:"is_paid"`
	ImageURL        string            `json:"image_url,omitempty"`
	ApplicantsCount int               `json:"applicants_count"`
	SeatsLeft       *int              `json:"seats_left,omitempty"`
	Questions       []models.Question `json:"questions,omitempty"`
	Status          string            `json:"status,omitempty"`
	Button          Button            `json:"button"`
	Ticket          *TicketModal      `json:"ticket,omitempty"`
}

// TicketModal is the confirmation dialog opened by View Ticket.
type TicketModal struct {
	Code         string    `json:"code"`
	WebinarID    string    `json:"webinar_id"`
	WebinarTitle string    `json:"webinar_title,omitempty"`
	ScheduledAt  time.Time `json:"scheduled_at,omitempty"`
	Location     string    `json:"location,omitempty"`
	Speaker      string    `json:"speaker,omitempty"`
	IssuedAt     time.Time `json:"issued_at,omitempty"`
}

// NewCard builds the card for w. ticket is attached only when the button offers View Ticket.
func NewCard(ctx context.Context, w models.Webinar, status models.ApplicationStatusView, ticket *models.Ticket, now time.Time, resolver Resolver) Card {
	c := Card{
		ID:              w.ID,
		Title:           w.Title,
		Description:     w.Description,
		Speaker:         w.Speaker,
		Location:        w.Location,
		ScheduledAt:     w.ScheduledAt,
		EndsAt:          w.EndsAt(),
		DurationMinutes: w.DurationMinutes,
		PriceLabel:      PriceLabel(&w),
		IsPaid:          w.IsPaid(),
		ApplicantsCount: w.ApplicantsCount,
		Status:          Badge(status),
		Button:          Affordance(w.HasEnded(now), status),
	}
	if resolver != nil {
		c.ImageURL = resolver.Resolve(ctx, w.ImageURL)
	} else {
		c.ImageURL = w.ImageURL
	}
	if w.Capacity > 0 {
		left := w.Capacity - w.ApplicantsCount
		if left < 0 {
			left = 0
		}
		c.SeatsLeft = &left
	}
	if c.Button.Action == ActionViewTicket {
		if ticket == nil && status.Application != nil {
			ticket = status.Application.Ticket
		}
		if ticket != nil {
			m := NewTicketModal(*ticket, &w)
			c.Ticket = &m
		}
	}
	return c
}

// NewDetail is NewCard with the registration questions included.
func NewDetail(ctx context.Context, w models.Webinar, status models.ApplicationStatusView, ticket *models.Ticket, now time.Time, resolver Resolver) Card {
	c := NewCard(ctx, w, status, ticket, now, resolver)
	c.Questions = w.Questions
	return c
}

// NewTicketModal builds the ticket dialog. w may be nil when the webinar is not cached.
func NewTicketModal(t models.Ticket, w *models.Webinar) TicketModal {
	m := TicketModal{Code: t.Code, WebinarID: t.WebinarID, IssuedAt: t.IssuedAt}
	if w != nil {
		if m.WebinarID == "" {
			m.WebinarID = w.ID
		}
		m.WebinarTitle = w.Title
		m.ScheduledAt = w.ScheduledAt
		m.Location = w.Location
		m.Speaker = w.Speaker
	}
	return m
}

// PriceLabel renders "Free" or the amount with its currency.
func PriceLabel(w *models.Webinar) string {
	amount := w.Amount()
	if amount <= 0 {
		if w.RequiresPayment {
			return "Paid"
		}
		return "Free"
	}
	s := strconv.FormatFloat(amount, 'f', 2, 64)
	s = strings.TrimSuffix(s, ".00")
	if w.Currency != "" {
		return strings.ToUpper(w.Currency) + " " + s
	}
	return s
}
