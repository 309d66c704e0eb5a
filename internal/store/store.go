// Package store is the per-viewer in-memory cache of webinar reads and the actions that refresh it
// through the upstream API.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/portal/internal/apperror"
	"github.com/aura-webinar/portal/internal/models"
)

// Change keys passed to listeners.
const (
	KeyUpcoming     = "upcomingWebinars"
	KeyAdmin        = "adminWebinars"
	KeySelected     = "selectedWebinar"
	KeyApplicants   = "webinarApplicants"
	KeyTickets      = "userTickets"
	KeyApplications = "applications"
	KeyOps          = "ops"
)

// ErrAlreadyApplied blocks a second application for the same webinar.
var ErrAlreadyApplied = &apperror.Conflict{Message: "You have already applied for this webinar."}

// ErrInProgress blocks a registration call while another one for the same webinar is in flight.
var ErrInProgress = &apperror.Conflict{Message: "Your registration for this webinar is already in progress."}

// Backend is the upstream API surface the store calls.
type Backend interface {
	ListUpcoming(ctx context.Context) ([]models.Webinar, error)
	GetByID(ctx context.Context, id string) (*models.Webinar, error)
	Apply(ctx context.Context, webinarID string, answers models.Answers) (*models.Application, error)
	InitializePayment(ctx context.Context, webinarID string, amount float64, currency string) (*models.PaymentIntent, error)
	ConfirmPayment(ctx context.Context, webinarID string, answers models.Answers, result models.PaymentResult) (*models.Application, error)
	ListMyApplications(ctx context.Context) ([]models.Application, error)
	ListMyTickets(ctx context.Context) ([]models.Ticket, error)
	ListAdmin(ctx context.Context) ([]models.Webinar, error)
	Create(ctx context.Context, in models.WebinarInput) (*models.Webinar, error)
	Update(ctx context.Context, id string, in models.WebinarInput) (*models.Webinar, error)
	SetPublished(ctx context.Context, id string, published bool) error
	ListApplicants(ctx context.Context, webinarID string) ([]models.Application, error)
	SetApplicationStatus(ctx context.Context, applicationID string, status models.ApplicationStatus) (*models.Application, error)
}

// Store caches webinar reads for one viewer. Updates are applied in the order their calls resolve.
type Store struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time

	mu           sync.RWMutex
	upcoming     []models.Webinar
	admin        []models.Webinar
	selected     *models.Webinar
	applicants   map[string][]models.Application // webinar ID -> applications
	tickets      []models.Ticket
	applications map[string]*models.Application // webinar ID -> the viewer's application
	ops          map[string]OpState
	inflight     map[string]int
	claims       map[string]bool // webinar ID -> registration call in flight
	listeners    []func(key string)
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store over backend.
func New(backend Backend, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		backend:      backend,
		logger:       logger,
		now:          time.Now,
		applicants:   make(map[string][]models.Application),
		applications: make(map[string]*models.Application),
		ops:          make(map[string]OpState),
		inflight:     make(map[string]int),
		claims:       make(map[string]bool),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnChange registers fn to be called after every state change with the changed key.
func (s *Store) OnChange(fn func(key string)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) notify(keys ...string) {
	s.mu.RLock()
	ls := append([]func(string){}, s.listeners...)
	s.mu.RUnlock()
	for _, k := range keys {
		for _, fn := range ls {
			fn(k)
		}
	}
}

// begin marks key loading and returns the function that resolves it.
func (s *Store) begin(key string) func(err *error) {
	s.mu.Lock()
	s.inflight[key]++
	s.ops[key] = OpState{Status: OpLoading, UpdatedAt: s.now()}
	s.mu.Unlock()
	s.notify(KeyOps)

	return func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		s.mu.Lock()
		s.inflight[key]--
		st := OpState{Status: OpSuccess, UpdatedAt: s.now()}
		if err != nil {
			st.Status = OpError
			st.Error = apperror.UserMessage(err)
		}
		if s.inflight[key] > 0 {
			st.Status = OpLoading
		} else {
			delete(s.inflight, key)
		}
		s.ops[key] = st
		s.mu.Unlock()
		if err != nil {
			s.logger.Warn("store operation failed", zap.String("op", key), zap.Error(err))
		}
		s.notify(KeyOps)
	}
}

// Op returns the state of an operation key (see OpKey).
func (s *Store) Op(key string) OpState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.ops[key]
	if !ok {
		return OpState{Status: OpIdle}
	}
	return st
}

// Ops returns a copy of every operation state.
func (s *Store) Ops() map[string]OpState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]OpState, len(s.ops))
	for k, v := range s.ops {
		out[k] = v
	}
	return out
}

// Loading reports whether any operation is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.inflight) > 0
}

// UpcomingWebinars returns the cached upcoming list.
func (s *Store) UpcomingWebinars() []models.Webinar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Webinar(nil), s.upcoming...)
}

// AdminWebinars returns the cached admin list.
func (s *Store) AdminWebinars() []models.Webinar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Webinar(nil), s.admin...)
}

// SelectedWebinar returns the last fetched webinar detail.
func (s *Store) SelectedWebinar() *models.Webinar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return nil
	}
	w := *s.selected
	return &w
}

// WebinarApplicants returns the cached applicants for a webinar.
func (s *Store) WebinarApplicants(webinarID string) []models.Application {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Application(nil), s.applicants[webinarID]...)
}

// UserTickets returns the cached ticket list.
func (s *Store) UserTickets() []models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Ticket(nil), s.tickets...)
}

// Webinar looks up a webinar across the selected, upcoming and admin caches.
func (s *Store) Webinar(id string) (*models.Webinar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected != nil && s.selected.ID == id {
		w := *s.selected
		return &w, true
	}
	for _, list := range [][]models.Webinar{s.upcoming, s.admin} {
		for i := range list {
			if list[i].ID == id {
				w := list[i]
				return &w, true
			}
		}
	}
	return nil, false
}

// ApplicationStatusFor returns the viewer's application state for a webinar.
func (s *Store) ApplicationStatusFor(webinarID string) models.ApplicationStatusView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.applications[webinarID]
	if !ok {
		return models.ApplicationStatusView{}
	}
	cp := *app
	return models.ApplicationStatusView{HasApplied: true, Application: &cp}
}

// TicketFor merges the application-embedded ticket and the ticket list into one optional ticket.
func (s *Store) TicketFor(webinarID string) *models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticketForLocked(webinarID)
}

func (s *Store) ticketForLocked(webinarID string) *models.Ticket {
	if app, ok := s.applications[webinarID]; ok && app.Ticket != nil && app.Status.MayHoldTicket() {
		t := *app.Ticket
		if t.WebinarID == "" {
			t.WebinarID = webinarID
		}
		return &t
	}
	for i := range s.tickets {
		if s.tickets[i].WebinarID == webinarID {
			t := s.tickets[i]
			return &t
		}
	}
	return nil
}

// FetchUpcomingWebinars replaces the upcoming list with published, not-yet-ended webinars.
func (s *Store) FetchUpcomingWebinars(ctx context.Context) (err error) {
	defer s.begin(OpFetchUpcoming)(&err)

	list, err := s.backend.ListUpcoming(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	out := make([]models.Webinar, 0, len(list))
	for _, w := range list {
		if w.IsPublished && !w.HasEnded(now) {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })

	s.mu.Lock()
	s.upcoming = out
	s.mu.Unlock()
	s.notify(KeyUpcoming)
	return nil
}

// FetchWebinar loads one webinar and makes it the selected webinar.
func (s *Store) FetchWebinar(ctx context.Context, id string) (w *models.Webinar, err error) {
	defer s.begin(OpKey(OpFetchWebinar, id))(&err)

	w, err = s.backend.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	cp := *w
	s.selected = &cp
	s.mu.Unlock()
	s.notify(KeySelected)
	return w, nil
}

// FetchMyApplications rebuilds the viewer's applications, keyed by webinar.
func (s *Store) FetchMyApplications(ctx context.Context) (err error) {
	defer s.begin(OpFetchApplications)(&err)

	list, err := s.backend.ListMyApplications(ctx)
	if err != nil {
		return err
	}
	m := make(map[string]*models.Application, len(list))
	for i := range list {
		app := sanitize(list[i])
		if prev, ok := m[app.WebinarID]; ok && prev.CreatedAt.After(app.CreatedAt) {
			continue
		}
		m[app.WebinarID] = &app
	}
	s.mu.Lock()
	s.applications = m
	s.mu.Unlock()
	s.notify(KeyApplications)
	return nil
}

// FetchUserTickets replaces the ticket list.
func (s *Store) FetchUserTickets(ctx context.Context) (err error) {
	defer s.begin(OpFetchTickets)(&err)

	list, err := s.backend.ListMyTickets(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tickets = list
	s.mu.Unlock()
	s.notify(KeyTickets)
	return nil
}

// ApplyForWebinar submits answers for a webinar. Answers must already be validated by the caller.
// The returned application embeds a ticket when registration completed synchronously.
func (s *Store) ApplyForWebinar(ctx context.Context, webinarID string, answers models.Answers) (app *models.Application, err error) {
	defer s.begin(OpKey(OpApply, webinarID))(&err)

	release, err := s.claim(webinarID, true)
	if err != nil {
		return nil, err
	}
	defer release()

	app, err = s.backend.Apply(ctx, webinarID, answers)
	if err != nil {
		return nil, err
	}
	s.recordApplication(webinarID, app)
	return app, nil
}

// InitializePayment opens a checkout for a paid webinar. No application or ticket is recorded.
func (s *Store) InitializePayment(ctx context.Context, w *models.Webinar) (intent *models.PaymentIntent, err error) {
	defer s.begin(OpKey(OpInitPayment, w.ID))(&err)

	release, err := s.claim(w.ID, true)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.backend.InitializePayment(ctx, w.ID, w.Amount(), w.Currency)
}

// ConfirmPayment finalizes a paid registration and records the resulting application and ticket.
func (s *Store) ConfirmPayment(ctx context.Context, webinarID string, answers models.Answers, result models.PaymentResult) (app *models.Application, err error) {
	defer s.begin(OpKey(OpConfirmPayment, webinarID))(&err)

	release, err := s.claim(webinarID, false)
	if err != nil {
		return nil, err
	}
	defer release()

	app, err = s.backend.ConfirmPayment(ctx, webinarID, answers, result)
	if err != nil {
		return nil, err
	}
	s.recordApplication(webinarID, app)
	return app, nil
}

// claim reserves webinarID for one registration call. With checkApplied, an existing application
// blocks the claim too. The check and the reservation happen under one lock.
func (s *Store) claim(webinarID string, checkApplied bool) (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if checkApplied {
		if _, ok := s.applications[webinarID]; ok {
			return nil, ErrAlreadyApplied
		}
	}
	if s.claims[webinarID] {
		return nil, ErrInProgress
	}
	s.claims[webinarID] = true
	return func() {
		s.mu.Lock()
		delete(s.claims, webinarID)
		s.mu.Unlock()
	}, nil
}

// EnsureMyApplications loads the viewer's applications unless a load already succeeded, so a
// fresh store knows about applications made earlier or elsewhere.
func (s *Store) EnsureMyApplications(ctx context.Context) error {
	if s.Op(OpFetchApplications).Status == OpSuccess {
		return nil
	}
	return s.FetchMyApplications(ctx)
}

func (s *Store) recordApplication(webinarID string, app *models.Application) {
	if app.WebinarID == "" {
		app.WebinarID = webinarID
	}
	clean := sanitize(*app)
	*app = clean
	s.mu.Lock()
	s.applications[webinarID] = &clean
	if clean.Ticket != nil && !hasTicket(s.tickets, clean.Ticket.Code) {
		s.tickets = append(s.tickets, *clean.Ticket)
	}
	for i := range s.upcoming {
		if s.upcoming[i].ID == webinarID {
			s.upcoming[i].ApplicantsCount++
		}
	}
	s.mu.Unlock()
	s.notify(KeyApplications, KeyTickets)
}

// sanitize fills a missing status (a ticket is proof of a confirmed seat) and drops a ticket
// attached to a rejected application.
func sanitize(app models.Application) models.Application {
	if app.Status == "" {
		app.Status = models.StatusApplied
		if app.Ticket != nil {
			app.Status = models.StatusApproved
		}
	}
	if app.Ticket != nil {
		if !app.Status.MayHoldTicket() {
			app.Ticket = nil
		} else if app.Ticket.WebinarID == "" {
			t := *app.Ticket
			t.WebinarID = app.WebinarID
			app.Ticket = &t
		}
	}
	return app
}

func hasTicket(list []models.Ticket, code string) bool {
	for _, t := range list {
		if t.Code == code {
			return true
		}
	}
	return false
}

// FetchAdminWebinars replaces the admin list.
func (s *Store) FetchAdminWebinars(ctx context.Context) (err error) {
	defer s.begin(OpFetchAdmin)(&err)

	list, err := s.backend.ListAdmin(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.admin = list
	s.mu.Unlock()
	s.notify(KeyAdmin)
	return nil
}

// FetchWebinarApplicants replaces the applicants cached for a webinar.
func (s *Store) FetchWebinarApplicants(ctx context.Context, webinarID string) (err error) {
	defer s.begin(OpKey(OpFetchApplicants, webinarID))(&err)

	list, err := s.backend.ListApplicants(ctx, webinarID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.applicants[webinarID] = list
	s.mu.Unlock()
	s.notify(KeyApplicants)
	return nil
}

// ApproveApplication approves an applicant and updates the cached entry on success.
func (s *Store) ApproveApplication(ctx context.Context, applicationID string) (err error) {
	defer s.begin(OpKey(OpApprove, applicationID))(&err)
	return s.setApplicationStatus(ctx, applicationID, models.StatusApproved)
}

// RejectApplication rejects an applicant and updates the cached entry on success.
func (s *Store) RejectApplication(ctx context.Context, applicationID string) (err error) {
	defer s.begin(OpKey(OpReject, applicationID))(&err)
	return s.setApplicationStatus(ctx, applicationID, models.StatusRejected)
}

func (s *Store) setApplicationStatus(ctx context.Context, applicationID string, status models.ApplicationStatus) error {
	updated, err := s.backend.SetApplicationStatus(ctx, applicationID, status)
	if err != nil {
		return err
	}
	s.mu.Lock()
	for wid, list := range s.applicants {
		for i := range list {
			if list[i].ID != applicationID {
				continue
			}
			if updated != nil && updated.ID == applicationID {
				if updated.Applicant == nil {
					updated.Applicant = list[i].Applicant
				}
				list[i] = *updated
			} else {
				list[i].Status = status
			}
			s.applicants[wid] = list
		}
	}
	s.mu.Unlock()
	s.notify(KeyApplicants)
	return nil
}

// PublishWebinar publishes a webinar and flips the cached flag after the call succeeds.
func (s *Store) PublishWebinar(ctx context.Context, id string) (err error) {
	defer s.begin(OpKey(OpPublish, id))(&err)
	return s.setPublished(ctx, id, true)
}

// UnpublishWebinar unpublishes a webinar and flips the cached flag after the call succeeds.
func (s *Store) UnpublishWebinar(ctx context.Context, id string) (err error) {
	defer s.begin(OpKey(OpUnpublish, id))(&err)
	return s.setPublished(ctx, id, false)
}

func (s *Store) setPublished(ctx context.Context, id string, published bool) error {
	if err := s.backend.SetPublished(ctx, id, published); err != nil {
		return err
	}
	s.mu.Lock()
	for i := range s.admin {
		if s.admin[i].ID == id {
			s.admin[i].IsPublished = published
		}
	}
	if s.selected != nil && s.selected.ID == id {
		s.selected.IsPublished = published
	}
	s.mu.Unlock()
	s.notify(KeyAdmin)
	return nil
}

// CreateWebinar validates the form, creates the webinar and appends it to the admin list.
func (s *Store) CreateWebinar(ctx context.Context, in models.WebinarInput) (w *models.Webinar, err error) {
	defer s.begin(OpCreate)(&err)

	if err := apperror.ValidateStruct(in); err != nil {
		return nil, err
	}
	w, err = s.backend.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.admin = append(s.admin, *w)
	s.mu.Unlock()
	s.notify(KeyAdmin)
	return w, nil
}

// UpdateWebinar validates the form, updates the webinar and merges it into the admin list.
func (s *Store) UpdateWebinar(ctx context.Context, id string, in models.WebinarInput) (w *models.Webinar, err error) {
	defer s.begin(OpKey(OpUpdate, id))(&err)

	if err := apperror.ValidateStruct(in); err != nil {
		return nil, err
	}
	w, err = s.backend.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	merged := false
	for i := range s.admin {
		if s.admin[i].ID == w.ID {
			s.admin[i] = *w
			merged = true
		}
	}
	if !merged {
		s.admin = append(s.admin, *w)
	}
	if s.selected != nil && s.selected.ID == w.ID {
		cp := *w
		s.selected = &cp
	}
	s.mu.Unlock()
	s.notify(KeyAdmin)
	return w, nil
}
