// Package registrations drives a viewer through registering for a webinar: answering the
// organizer's questions, paying when the webinar is paid, and reconciling the result into the store.
package registrations

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/portal/internal/apperror"
	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/internal/store"
)

// State is where a viewer stands with one webinar.
type State string

const (
	StateNotApplied     State = "NOT_APPLIED"
	StateAnswering      State = "ANSWERING"
	StatePaymentPending State = "PAYMENT_PENDING"
	StateRegistered     State = "REGISTERED"
	StateApproved       State = "APPROVED"
	StateRejected       State = "REJECTED"
	StateCompleted      State = "COMPLETED"
)

// Step is the entry decision for a webinar.
type Step string

const (
	StepRegister Step = "register" // free, no questions: register immediately
	StepAnswer   Step = "answer"   // show the question form
	StepPayment  Step = "payment"  // initialize checkout
)

// PaidQuestionsPolicy decides whether paid webinars collect answers before checkout.
type PaidQuestionsPolicy string

const (
	PaidSkipQuestions    PaidQuestionsPolicy = "skip"
	PaidCollectQuestions PaidQuestionsPolicy = "collect"
)

// ParsePolicy maps a config value to a policy, defaulting to PaidSkipQuestions.
func ParsePolicy(s string) PaidQuestionsPolicy {
	if PaidQuestionsPolicy(s) == PaidCollectQuestions {
		return PaidCollectQuestions
	}
	return PaidSkipQuestions
}

var (
	ErrEventEnded        = &apperror.Conflict{Message: "This event has already ended."}
	ErrAlreadyApplied    = store.ErrAlreadyApplied
	ErrNoPendingPayment  = &apperror.Conflict{Message: "There is no payment in progress for this webinar."}
	ErrPaymentFailed     = &apperror.Conflict{Message: "Payment was not completed. You can try again."}
	ErrReferenceMismatch = &apperror.Conflict{Message: "Payment reference does not match the checkout in progress."}
)

// Actions is the store surface the workflow drives.
type Actions interface {
	EnsureMyApplications(ctx context.Context) error
	ApplicationStatusFor(webinarID string) models.ApplicationStatusView
	TicketFor(webinarID string) *models.Ticket
	ApplyForWebinar(ctx context.Context, webinarID string, answers models.Answers) (*models.Application, error)
	InitializePayment(ctx context.Context, w *models.Webinar) (*models.PaymentIntent, error)
	ConfirmPayment(ctx context.Context, webinarID string, answers models.Answers, result models.PaymentResult) (*models.Application, error)
}

// PendingCheckout is a checkout the viewer left for and has not returned from.
type PendingCheckout struct {
	WebinarID   string         `json:"webinar_id"`
	Reference   string         `json:"reference"`
	CheckoutURL string         `json:"checkout_url"`
	Answers     models.Answers `json:"answers,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
}

// CheckoutTracker remembers pending checkouts across the redirect to the payment provider.
type CheckoutTracker interface {
	PendingCheckout(webinarID string) (PendingCheckout, bool)
	PutCheckout(pc PendingCheckout)
	RemoveCheckout(webinarID string)
}

// Outcome is the result of a workflow step, rendered by the caller.
type Outcome struct {
	State       State               `json:"state"`
	Step        Step                `json:"step,omitempty"`
	Questions   []models.Question   `json:"questions,omitempty"`
	Application *models.Application `json:"application,omitempty"`
	Ticket      *models.Ticket      `json:"ticket,omitempty"`
	CheckoutURL string              `json:"checkout_url,omitempty"`
}

// Workflow is the registration state machine for one viewer.
type Workflow struct {
	store  Actions
	policy PaidQuestionsPolicy
	logger *zap.Logger
	now    func() time.Time
}

// NewWorkflow creates a workflow over the viewer's store.
func NewWorkflow(store Actions, policy PaidQuestionsPolicy, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{store: store, policy: policy, logger: logger, now: time.Now}
}

// Route decides the entry step for a webinar. Paid webinars always reach payment.
func Route(w *models.Webinar, policy PaidQuestionsPolicy) Step {
	if w.IsPaid() {
		if policy == PaidCollectQuestions && w.HasQuestions() {
			return StepAnswer
		}
		return StepPayment
	}
	if w.HasQuestions() {
		return StepAnswer
	}
	return StepRegister
}

// StateOf derives the viewer's state for a webinar from the store and pending checkouts.
func (wf *Workflow) StateOf(w *models.Webinar, checkouts CheckoutTracker) State {
	status := wf.store.ApplicationStatusFor(w.ID)
	if status.HasApplied {
		switch status.Application.Status {
		case models.StatusApproved:
			if wf.store.TicketFor(w.ID) != nil {
				return StateRegistered
			}
			return StateApproved
		case models.StatusRejected:
			return StateRejected
		case models.StatusCompleted:
			return StateCompleted
		default:
			return StateRegistered
		}
	}
	if checkouts != nil {
		if _, ok := checkouts.PendingCheckout(w.ID); ok {
			return StatePaymentPending
		}
	}
	return StateNotApplied
}

// guard blocks ended events and viewers who already applied, loading the viewer's applications
// first when this store has not seen them yet.
func (wf *Workflow) guard(ctx context.Context, w *models.Webinar) error {
	if err := wf.store.EnsureMyApplications(ctx); err != nil {
		return err
	}
	if wf.store.ApplicationStatusFor(w.ID).HasApplied {
		return ErrAlreadyApplied
	}
	if w.HasEnded(wf.now()) {
		return ErrEventEnded
	}
	return nil
}

// Begin handles the viewer pressing Register.
func (wf *Workflow) Begin(ctx context.Context, w *models.Webinar, checkouts CheckoutTracker) (*Outcome, error) {
	if err := wf.guard(ctx, w); err != nil {
		return nil, err
	}
	switch Route(w, wf.policy) {
	case StepPayment:
		return wf.startPayment(ctx, w, models.Answers{}, checkouts)
	case StepAnswer:
		return &Outcome{State: StateAnswering, Step: StepAnswer, Questions: w.Questions}, nil
	default:
		return wf.register(ctx, w, models.Answers{})
	}
}

// Submit handles the answer form. Invalid answers return a *apperror.ValidationError and never
// reach the API.
func (wf *Workflow) Submit(ctx context.Context, w *models.Webinar, answers models.Answers, checkouts CheckoutTracker) (*Outcome, error) {
	if err := wf.guard(ctx, w); err != nil {
		return nil, err
	}
	answers = NormalizeAnswers(w.Questions, answers)
	if err := ValidateAnswers(w.Questions, answers); err != nil {
		return nil, err
	}
	if w.IsPaid() {
		return wf.startPayment(ctx, w, answers, checkouts)
	}
	return wf.register(ctx, w, answers)
}

func (wf *Workflow) register(ctx context.Context, w *models.Webinar, answers models.Answers) (*Outcome, error) {
	app, err := wf.store.ApplyForWebinar(ctx, w.ID, answers)
	if err != nil {
		return nil, err
	}
	wf.logger.Info("registered for webinar",
		zap.String("webinar_id", w.ID),
		zap.String("application_id", app.ID),
		zap.String("status", string(app.Status)),
	)
	return &Outcome{State: StateRegistered, Application: app, Ticket: wf.store.TicketFor(w.ID)}, nil
}

func (wf *Workflow) startPayment(ctx context.Context, w *models.Webinar, answers models.Answers, checkouts CheckoutTracker) (*Outcome, error) {
	intent, err := wf.store.InitializePayment(ctx, w)
	if err != nil {
		return nil, err
	}
	if intent.CheckoutURL == "" {
		return nil, errors.New("payment initialization returned no checkout url")
	}
	checkouts.PutCheckout(PendingCheckout{
		WebinarID:   w.ID,
		Reference:   intent.Reference,
		CheckoutURL: intent.CheckoutURL,
		Answers:     answers,
		StartedAt:   wf.now(),
	})
	wf.logger.Info("checkout started",
		zap.String("webinar_id", w.ID),
		zap.String("reference", intent.Reference),
		zap.Float64("amount", intent.Amount),
	)
	return &Outcome{State: StatePaymentPending, Step: StepPayment, CheckoutURL: intent.CheckoutURL}, nil
}

// ConfirmPayment handles the viewer returning from checkout. A failed or cancelled payment drops
// the pending checkout (back to NOT_APPLIED). An API failure keeps it so the viewer can retry.
func (wf *Workflow) ConfirmPayment(ctx context.Context, w *models.Webinar, result models.PaymentResult, checkouts CheckoutTracker) (*Outcome, error) {
	pc, ok := checkouts.PendingCheckout(w.ID)
	if !ok {
		return nil, ErrNoPendingPayment
	}
	if result.Reference == "" {
		result.Reference = pc.Reference
	}
	if pc.Reference != "" && result.Reference != pc.Reference {
		return nil, ErrReferenceMismatch
	}
	if !result.Succeeded() {
		checkouts.RemoveCheckout(w.ID)
		wf.logger.Info("checkout not completed", zap.String("webinar_id", w.ID), zap.String("status", result.Status))
		return &Outcome{State: StateNotApplied}, ErrPaymentFailed
	}
	app, err := wf.store.ConfirmPayment(ctx, w.ID, pc.Answers, result)
	if err != nil {
		return nil, err
	}
	checkouts.RemoveCheckout(w.ID)
	wf.logger.Info("payment confirmed", zap.String("webinar_id", w.ID), zap.String("reference", result.Reference))
	return &Outcome{State: StateRegistered, Application: app, Ticket: wf.store.TicketFor(w.ID)}, nil
}

// CancelPayment abandons a pending checkout so the viewer may start again.
func (wf *Workflow) CancelPayment(w *models.Webinar, checkouts CheckoutTracker) *Outcome {
	checkouts.RemoveCheckout(w.ID)
	return &Outcome{State: StateNotApplied}
}

// MemoryCheckouts is a CheckoutTracker held in memory.
type MemoryCheckouts map[string]PendingCheckout

// PendingCheckout implements CheckoutTracker.
func (m MemoryCheckouts) PendingCheckout(webinarID string) (PendingCheckout, bool) {
	pc, ok := m[webinarID]
	return pc, ok
}

// PutCheckout implements CheckoutTracker.
func (m MemoryCheckouts) PutCheckout(pc PendingCheckout) { m[pc.WebinarID] = pc }

// RemoveCheckout implements CheckoutTracker.
func (m MemoryCheckouts) RemoveCheckout(webinarID string) { delete(m, webinarID) }
