package webinars

import (
	"context"
	"net/url"

	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/pkg/apiclient"
)

// Repository reads and writes webinar data through the upstream REST API.
type Repository struct {
	api *apiclient.Client
}

// NewRepository creates a webinar repository bound to an (optionally authenticated) API client.
func NewRepository(api *apiclient.Client) *Repository {
	return &Repository{api: api}
}

func webinarPath(id string) string {
	return "/webinars/" + url.PathEscape(id)
}

// ListUpcoming returns published webinars that have not ended yet.
func (r *Repository) ListUpcoming(ctx context.Context) ([]models.Webinar, error) {
	var list []models.Webinar
	if err := r.api.Get(ctx, "/webinars/upcoming", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetByID returns a single webinar with its registration questions.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Webinar, error) {
	var w models.Webinar
	if err := r.api.Get(ctx, webinarPath(id), &w); err != nil {
		return nil, err
	}
	return &w, nil
}

type applyRequest struct {
	Answers models.Answers `json:"answers"`
}

// Apply submits the viewer's answers. Free webinars come back with an embedded ticket.
func (r *Repository) Apply(ctx context.Context, webinarID string, answers models.Answers) (*models.Application, error) {
	if answers == nil {
		answers = models.Answers{}
	}
	var app models.Application
	if err := r.api.Post(ctx, webinarPath(webinarID)+"/apply", applyRequest{Answers: answers}, &app); err != nil {
		return nil, err
	}
	if app.WebinarID == "" {
		app.WebinarID = webinarID
	}
	return &app, nil
}

type initPaymentRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
}

// InitializePayment opens a checkout for the webinar price.
func (r *Repository) InitializePayment(ctx context.Context, webinarID string, amount float64, currency string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.api.Post(ctx, webinarPath(webinarID)+"/payment/initialize", initPaymentRequest{Amount: amount, Currency: currency}, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

type confirmPaymentRequest struct {
	Answers models.Answers       `json:"answers"`
	Payment models.PaymentResult `json:"payment"`
}

// ConfirmPayment finalizes a paid registration with the original answers.
func (r *Repository) ConfirmPayment(ctx context.Context, webinarID string, answers models.Answers, result models.PaymentResult) (*models.Application, error) {
	if answers == nil {
		answers = models.Answers{}
	}
	var app models.Application
	if err := r.api.Post(ctx, webinarPath(webinarID)+"/payment/confirm", confirmPaymentRequest{Answers: answers, Payment: result}, &app); err != nil {
		return nil, err
	}
	if app.WebinarID == "" {
		app.WebinarID = webinarID
	}
	return &app, nil
}

// ListMyApplications returns the current viewer's applications.
func (r *Repository) ListMyApplications(ctx context.Context) ([]models.Application, error) {
	var list []models.Application
	if err := r.api.Get(ctx, "/users/me/applications", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListMyTickets returns the tickets issued to the current viewer.
func (r *Repository) ListMyTickets(ctx context.Context) ([]models.Ticket, error) {
	var list []models.Ticket
	if err := r.api.Get(ctx, "/users/me/tickets", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListAdmin returns every webinar the admin manages, published or not.
func (r *Repository) ListAdmin(ctx context.Context) ([]models.Webinar, error) {
	var list []models.Webinar
	if err := r.api.Get(ctx, "/admin/webinars", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Create creates a webinar (admin).
func (r *Repository) Create(ctx context.Context, in models.WebinarInput) (*models.Webinar, error) {
	var w models.Webinar
	if err := r.api.Post(ctx, "/admin/webinars", in, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Update replaces a webinar's editable fields (admin).
func (r *Repository) Update(ctx context.Context, id string, in models.WebinarInput) (*models.Webinar, error) {
	var w models.Webinar
	if err := r.api.Put(ctx, "/admin"+webinarPath(id), in, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// SetPublished publishes or unpublishes a webinar (admin).
func (r *Repository) SetPublished(ctx context.Context, id string, published bool) error {
	action := "/unpublish"
	if published {
		action = "/publish"
	}
	return r.api.Patch(ctx, "/admin"+webinarPath(id)+action, nil, nil)
}

// ListApplicants returns the applications submitted for a webinar (admin).
func (r *Repository) ListApplicants(ctx context.Context, webinarID string) ([]models.Application, error) {
	var list []models.Application
	if err := r.api.Get(ctx, "/admin"+webinarPath(webinarID)+"/applications", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SetApplicationStatus approves or rejects an application (admin).
func (r *Repository) SetApplicationStatus(ctx context.Context, applicationID string, status models.ApplicationStatus) (*models.Application, error) {
	action := "/reject"
	if status == models.StatusApproved {
		action = "/approve"
	}
	var app models.Application
	if err := r.api.Patch(ctx, "/admin/applications/"+url.PathEscape(applicationID)+action, nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}
