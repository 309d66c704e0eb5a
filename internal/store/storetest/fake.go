// Package storetest provides an in-memory store.Backend for tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aura-webinar/portal/internal/models"
)

// Backend is an in-memory upstream. Set Err* fields to force failures.
type Backend struct {
	mu sync.Mutex

	Webinars     map[string]models.Webinar
	Applications []models.Application
	Tickets      []models.Ticket
	Applicants   map[string][]models.Application
	Intents      []models.PaymentIntent

	ErrList    error
	ErrApply   error
	ErrInit    error
	ErrConfirm error
	ErrStatus  error
	ErrPublish error

	// Pending makes Apply return an Applied application without a ticket.
	Pending bool
	// PendingTicket makes a Pending Apply still issue a ticket.
	PendingTicket bool

	// BeforeApply and BeforeInit run before the call takes the backend lock.
	BeforeApply func()
	BeforeInit  func()

	Calls map[string]int
	seq   int
}

// New returns an empty backend seeded with webinars.
func New(webinars ...models.Webinar) *Backend {
	b := &Backend{
		Webinars:   make(map[string]models.Webinar),
		Applicants: make(map[string][]models.Application),
		Calls:      make(map[string]int),
	}
	for _, w := range webinars {
		b.Webinars[w.ID] = w
	}
	return b
}

func (b *Backend) called(name string) {
	b.Calls[name]++
}

// CallCount returns how many times a method was invoked.
func (b *Backend) CallCount(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Calls[name]
}

func (b *Backend) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s-%d", prefix, b.seq)
}

func (b *Backend) ListUpcoming(ctx context.Context) ([]models.Webinar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.called("ListUpcoming")
	if b.ErrList != nil {
		return nil, b.ErrList
	}
	out := make([]models.Webinar, 0, len(b.Webinars))
	for _, w := range b.Webinars {
		out = append(out, w)
	}
	return out, nil
}

func (b *Backend) GetByID(ctx context.Context, id string) (*models.Webinar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.called("GetByID")
	w, ok := b.Webinars[id]
	if !ok {
		return nil, fmt.Errorf("webinar %s not found", id)
	}
	return &w, nil
}

func (b *Backend) Apply(ctx context.Context, webinarID string, answers models.Answers) (*models.Application, error) {
	if b.BeforeApply != nil {
		b.BeforeApply()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.called("Apply")
	if b.ErrApply != nil {
		return nil, b.ErrApply
	}
	app := models.Application{
		ID:        b.nextID("app"),
		WebinarID: webinarID,
		Status:    models.StatusApproved,
		Answers:   answers,
		CreatedAt: time.Now(),
	}
	if b.Pending {
		app.Status = models.StatusApplied
	}
	if !b.Pending || b.PendingTicket {
		t := models.Ticket{ID: b.nextID("tkt"), Code: b.nextID("CODE"), IssuedAt: time.Now(), WebinarID: webinarID}
		app.Ticket = &t
		b.Tickets = append(b.Tickets, t)
	}
	b.Applications = append(b.Applications, app)
	return &app, nil
}

func (b *Backend) InitializePayment(ctx context.Context, webinarID string, amount float64, currency string) (*models.PaymentIntent, error) {
	if b.BeforeInit != nil {
		b.BeforeInit()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.called("InitializePayment")
	if b.ErrInit != nil {
		return nil, b.ErrInit
	}
	ref := b.nextID("ref")
	intent := models.PaymentIntent{
		CheckoutURL: "https://checkout.example.com/pay/" + ref,
		Reference:   ref,
		Amount:      amount,
		Currency:    currency,
	}
	b.Intents = append(b.Intents, intent)
	return &intent, nil
}

func (b *Backend) ConfirmPayment(ctx context.Context, webinarID string, answers models.Answers, result models.PaymentResult) (*models.Application, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.called("ConfirmPayment")
	if b.ErrConfirm != nil {
		return nil, b.ErrConfirm
	}
	t := models.Ticket{ID: b.nextID("tkt"), Code: b.nextID("PAID"), IssuedAt: time.Now(), WebinarID: webinarID}
	app := models.Application{
		ID:        b.nextID("app"),
		WebinarID: webinarID,
		Status:    models.StatusApproved,
		Answers:   answers,
		CreatedAt: time.Now(),
		Ticket:    &t,
	}
	b.Tickets = append(b.Tickets, t)
	b.Applications = append(b.Applications, app)
	return &app, nil
}

func (b *Backend) ListMyApplications(ctx context.Context) ([]models.Application, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.called("ListMyApplications")
	if b.ErrList != nil {
		return nil, b.ErrList
	}
	return append([]models.Application(nil), b.Applications...), nil
}

func (b *Backend) ListMyTickets(ctx context.Context) ([]models.Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.called("ListMyTickets")
	if b.ErrList != nil {
		return nil, b.ErrList
	}
	return append([]models.Ticket(nil), b.Tickets...), nil
}

func (b *Backend) ListAdmin(ctx context.Context) ([]models.Webinar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.called("ListAdmin")
	if b.ErrList != nil {
		return nil, b.ErrList
	}
	out := make([]models.Webinar, 0, len(b.Webinars))
	for _, w := range b.Webinars {
		out = append(out, w)
	}
	return out, nil
}

func (b *Backend) Create(ctx context.Context, in models.WebinarInput) (*models.Webinar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.called("Create")
	w := fromInput(b.nextID("web"), in)
	b.Webinars[w.ID] = w
	return &w, nil
}

func (b *Backend) Update(ctx context.Context, id string, in models.WebinarInput) (*models.Webinar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.called("Update")
	prev, ok := b.Webinars[id]
	if !ok {
		return nil, fmt.Errorf("webinar %s not found", id)
	}
	w := fromInput(id, in)
	w.IsPublished = prev.IsPublished
	b.Webinars[id] = w
	return &w, nil
}

func (b *Backend) SetPublished(ctx context.Context, id string, published bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.called("SetPublished")
	if b.ErrPublish != nil {
		return b.ErrPublish
	}
	w, ok := b.Webinars[id]
	if !ok {
		return fmt.Errorf("webinar %s not found", id)
	}
	w.IsPublished = published
	b.Webinars[id] = w
	return nil
}

func (b *Backend) ListApplicants(ctx context.Context, webinarID string) ([]models.Application, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.called("ListApplicants")
	if b.ErrList != nil {
		return nil, b.ErrList
	}
	return append([]models.Application(nil), b.Applicants[webinarID]...), nil
}

func (b *Backend) SetApplicationStatus(ctx context.Context, applicationID string, status models.ApplicationStatus) (*models.Application, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.called("SetApplicationStatus")
	if b.ErrStatus != nil {
		return nil, b.ErrStatus
	}
	for wid, list := range b.Applicants {
		for i := range list {
			if list[i].ID == applicationID {
				list[i].Status = status
				b.Applicants[wid] = list
				app := list[i]
				return &app, nil
			}
		}
	}
	return nil, fmt.Errorf("application %s not found", applicationID)
}

func fromInput(id string, in models.WebinarInput) models.Webinar {
	qs := make([]models.Question, 0, len(in.Questions))
	for _, q := range in.Questions {
		qs = append(qs, models.Question{ID: q.ID, Type: q.Type, Prompt: q.Prompt, Options: q.Options, Required: q.Required})
	}
	return models.Webinar{
		ID:              id,
		Title:           in.Title,
		Description:     in.Description,
		ScheduledAt:     in.ScheduledAt,
		Capacity:        in.Capacity,
		Price:           in.Price,
		RequiresPayment: in.RequiresPayment,
		Currency:        in.Currency,
		Location:        in.Location,
		Speaker:         in.Speaker,
		DurationMinutes: in.DurationMinutes,
		ImageURL:        in.ImageURL,
		Questions:       qs,
	}
}
