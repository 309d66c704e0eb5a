package webinars

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/portal/internal/apperror"
	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/internal/presentation"
	"github.com/aura-webinar/portal/internal/registrations"
	"github.com/aura-webinar/portal/internal/session"
	"github.com/aura-webinar/portal/internal/store"
	"github.com/aura-webinar/portal/pkg/response"
)

// AnswersRequest is the body for POST /api/webinars/:id/answers.
type AnswersRequest struct {
	Answers models.Answers `json:"answers"`
}

// PaymentReturnRequest is the body for POST /api/webinars/:id/payment/confirm.
type PaymentReturnRequest struct {
	Reference         string `json:"reference" form:"reference"`
	Status            string `json:"status" form:"status"`
	ProviderPaymentID string `json:"provider_payment_id" form:"provider_payment_id"`
}

// ListView is the body of GET /api/webinars.
type ListView struct {
	Webinars []presentation.Card `json:"webinars"`
	Error    string              `json:"error,omitempty"` // set when a refresh failed and cached data is shown
}

// DetailView is the body of GET /api/webinars/:id.
type DetailView struct {
	Webinar     presentation.Card   `json:"webinar"`
	State       registrations.State `json:"state"`
	CheckoutURL string              `json:"checkout_url,omitempty"`
}

// RegistrationView is the body of every registration step.
type RegistrationView struct {
	State       registrations.State       `json:"state"`
	Step        registrations.Step        `json:"step,omitempty"`
	Questions   []models.Question         `json:"questions,omitempty"`
	CheckoutURL string                    `json:"checkout_url,omitempty"`
	Application *models.Application       `json:"application,omitempty"`
	Ticket      *presentation.TicketModal `json:"ticket,omitempty"`
	Button      presentation.Button       `json:"button"`
	Ops         map[string]store.OpState  `json:"ops,omitempty"`
}

// StateView is the body of GET /api/state.
type StateView struct {
	Loading bool                     `json:"loading"`
	Ops     map[string]store.OpState `json:"ops"`
}

// Handler serves webinar listings, registration and the admin console from the viewer's store.
type Handler struct {
	stores   *store.Registry
	sessions *session.Manager
	policy   registrations.PaidQuestionsPolicy
	resolver presentation.Resolver
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandler creates a webinar handler.
func NewHandler(stores *store.Registry, sessions *session.Manager, policy registrations.PaidQuestionsPolicy, resolver presentation.Resolver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{stores: stores, sessions: sessions, policy: policy, resolver: resolver, logger: logger, now: time.Now}
}

// AnonymousStore is the registry key shared by signed-out viewers, whose sessions are never persisted.
const AnonymousStore = "anonymous"

func (h *Handler) storeFor(c *gin.Context) (*store.Store, *session.Session) {
	s := session.Current(c)
	if !s.IsAuthenticated() {
		return h.stores.Get(AnonymousStore, ""), s
	}
	return h.stores.Get(s.ID, s.Token), s
}

func (h *Handler) workflow(st *store.Store) *registrations.Workflow {
	return registrations.NewWorkflow(st, h.policy, h.logger)
}

// webinar returns the cached webinar, loading it when the cache has no copy.
func (h *Handler) webinar(ctx context.Context, st *store.Store, id string) (*models.Webinar, error) {
	if w, ok := st.Webinar(id); ok {
		return w, nil
	}
	return st.FetchWebinar(ctx, id)
}

// List handles GET /api/webinars.
func (h *Handler) List(c *gin.Context) {
	st, s := h.storeFor(c)
	ctx := c.Request.Context()

	err := st.FetchUpcomingWebinars(ctx)
	list := st.UpcomingWebinars()
	if err != nil && len(list) == 0 {
		h.fail(c, "list webinars", err)
		return
	}
	if s.IsAuthenticated() {
		if aerr := st.FetchMyApplications(ctx); aerr != nil && err == nil {
			err = aerr
		}
	}

	view := ListView{Webinars: make([]presentation.Card, 0, len(list))}
	now := h.now()
	for _, w := range list {
		view.Webinars = append(view.Webinars, presentation.NewCard(ctx, w, st.ApplicationStatusFor(w.ID), st.TicketFor(w.ID), now, h.resolver))
	}
	if err != nil {
		view.Error = apperror.UserMessage(err)
	}
	response.OK(c, view)
}

// Get handles GET /api/webinars/:id.
func (h *Handler) Get(c *gin.Context) {
	st, s := h.storeFor(c)
	ctx := c.Request.Context()
	id := c.Param("id")

	w, err := st.FetchWebinar(ctx, id)
	if err != nil {
		h.fail(c, "get webinar", err)
		return
	}
	if s.IsAuthenticated() {
		if err := st.FetchMyApplications(ctx); err != nil {
			h.logger.Warn("applications refresh failed", zap.String("webinar_id", id), zap.Error(err))
		}
	}

	view := DetailView{
		Webinar: presentation.NewDetail(ctx, *w, st.ApplicationStatusFor(id), st.TicketFor(id), h.now(), h.resolver),
		State:   h.workflow(st).StateOf(w, s),
	}
	if pc, ok := s.PendingCheckout(id); ok {
		view.CheckoutURL = pc.CheckoutURL
	}
	response.OK(c, view)
}

// Register handles POST /api/webinars/:id/register.
func (h *Handler) Register(c *gin.Context) {
	st, s := h.storeFor(c)
	ctx := c.Request.Context()

	w, err := h.webinar(ctx, st, c.Param("id"))
	if err != nil {
		h.fail(c, "register", err)
		return
	}
	out, err := h.workflow(st).Begin(ctx, w, s)
	h.respond(c, st, s, w, out, err)
}

// SubmitAnswers handles POST /api/webinars/:id/answers.
func (h *Handler) SubmitAnswers(c *gin.Context) {
	var req AnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	st, s := h.storeFor(c)
	ctx := c.Request.Context()

	w, err := h.webinar(ctx, st, c.Param("id"))
	if err != nil {
		h.fail(c, "submit answers", err)
		return
	}
	out, err := h.workflow(st).Submit(ctx, w, req.Answers, s)
	h.respond(c, st, s, w, out, err)
}

// ConfirmPayment handles POST /api/webinars/:id/payment/confirm and the provider's return
// redirect (GET with reference and status in the query).
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req PaymentReturnRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	st, s := h.storeFor(c)
	ctx := c.Request.Context()

	w, err := h.webinar(ctx, st, c.Param("id"))
	if err != nil {
		h.fail(c, "confirm payment", err)
		return
	}
	result := models.PaymentResult{
		Reference:         strings.TrimSpace(req.Reference),
		Status:            strings.ToLower(strings.TrimSpace(req.Status)),
		ProviderPaymentID: req.ProviderPaymentID,
	}
	out, err := h.workflow(st).ConfirmPayment(ctx, w, result, s)
	h.respond(c, st, s, w, out, err)
}

// CancelPayment handles POST /api/webinars/:id/payment/cancel.
func (h *Handler) CancelPayment(c *gin.Context) {
	st, s := h.storeFor(c)
	ctx := c.Request.Context()

	w, err := h.webinar(ctx, st, c.Param("id"))
	if err != nil {
		h.fail(c, "cancel payment", err)
		return
	}
	h.respond(c, st, s, w, h.workflow(st).CancelPayment(w, s), nil)
}

// MyTickets handles GET /api/me/tickets.
func (h *Handler) MyTickets(c *gin.Context) {
	st, _ := h.storeFor(c)
	ctx := c.Request.Context()

	if err := st.FetchUserTickets(ctx); err != nil {
		h.fail(c, "list tickets", err)
		return
	}
	tickets := st.UserTickets()
	out := make([]presentation.TicketModal, 0, len(tickets))
	for _, t := range tickets {
		w, _ := st.Webinar(t.WebinarID)
		out = append(out, presentation.NewTicketModal(t, w))
	}
	response.OK(c, out)
}

// MyApplications handles GET /api/me/applications.
func (h *Handler) MyApplications(c *gin.Context) {
	st, _ := h.storeFor(c)
	ctx := c.Request.Context()

	if err := st.FetchMyApplications(ctx); err != nil {
		h.fail(c, "list applications", err)
		return
	}
	if err := st.FetchUpcomingWebinars(ctx); err != nil {
		h.logger.Warn("upcoming refresh failed", zap.Error(err))
	}
	now := h.now()
	out := make([]presentation.Card, 0)
	for _, w := range st.UpcomingWebinars() {
		status := st.ApplicationStatusFor(w.ID)
		if status.HasApplied {
			out = append(out, presentation.NewCard(ctx, w, status, st.TicketFor(w.ID), now, h.resolver))
		}
	}
	response.OK(c, out)
}

// State handles GET /api/state: the per-operation loading and error flags of the viewer's store.
func (h *Handler) State(c *gin.Context) {
	st, _ := h.storeFor(c)
	response.OK(c, StateView{Loading: st.Loading(), Ops: st.Ops()})
}

func (h *Handler) respond(c *gin.Context, st *store.Store, s *session.Session, w *models.Webinar, out *registrations.Outcome, err error) {
	if s.IsAuthenticated() {
		if serr := h.sessions.Save(c, s); serr != nil {
			h.logger.Error("session save failed", zap.String("session_id", s.ID), zap.Error(serr))
		}
	}
	if err != nil && out == nil {
		h.fail(c, "registration", err)
		return
	}
	view := RegistrationView{
		State:       out.State,
		Step:        out.Step,
		Questions:   out.Questions,
		CheckoutURL: out.CheckoutURL,
		Application: out.Application,
		Button:      presentation.Affordance(w.HasEnded(h.now()), st.ApplicationStatusFor(w.ID)),
	}
	if out.Ticket != nil {
		m := presentation.NewTicketModal(*out.Ticket, w)
		view.Ticket = &m
	}
	if err != nil {
		view.Ops = st.Ops()
		c.JSON(apperror.Status(err), response.Body{Success: false, Data: view, Error: apperror.UserMessage(err)})
		return
	}
	response.OK(c, view)
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := apperror.Status(err)
	if status >= 500 {
		h.logger.Error(op+" failed", zap.Error(err))
	}
	response.Fail(c, status, apperror.UserMessage(err), apperror.Fields(err))
}
