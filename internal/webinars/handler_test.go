package webinars

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/internal/registrations"
	"github.com/aura-webinar/portal/internal/session"
	"github.com/aura-webinar/portal/internal/store"
	"github.com/aura-webinar/portal/internal/store/storetest"
)

func price(v float64) *float64 { return &v }

type harness struct {
	router  *gin.Engine
	backend *storetest.Backend
	sess    *session.Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	now := time.Now()
	b := storetest.New(
		models.Webinar{ID: "free", Title: "Free intro", ScheduledAt: now.Add(24 * time.Hour), DurationMinutes: 60, IsPublished: true},
		models.Webinar{ID: "form", Title: "With form", ScheduledAt: now.Add(48 * time.Hour), DurationMinutes: 60, IsPublished: true,
			Questions: []models.Question{{ID: "company", Type: models.QuestionText, Prompt: "Company"}}},
		models.Webinar{ID: "paid", Title: "Masterclass", ScheduledAt: now.Add(72 * time.Hour), DurationMinutes: 60, IsPublished: true, Price: price(500), Currency: "NGN"},
		models.Webinar{ID: "past", Title: "Old", ScheduledAt: now.Add(-72 * time.Hour), DurationMinutes: 60, IsPublished: true},
	)

	fs, err := session.NewFileStore(t.TempDir(), "secret")
	require.NoError(t, err)
	mgr := session.NewManager(fs, "portal_session", time.Hour, false, nil)
	reg := store.NewRegistry(func(string) store.Backend { return b }, time.Hour, nil)
	h := NewHandler(reg, mgr, registrations.PaidSkipQuestions, nil, nil)

	sess := session.New(time.Hour)
	sess.SignIn("token", &models.UserPublic{ID: "u-1", Role: models.RoleAdmin})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(session.ContextKey, sess)
		c.Next()
	})
	r.GET("/api/webinars", h.List)
	r.GET("/api/webinars/:id", h.Get)
	r.POST("/api/webinars/:id/register", h.Register)
	r.POST("/api/webinars/:id/answers", h.SubmitAnswers)
	r.POST("/api/webinars/:id/payment/confirm", h.ConfirmPayment)
	r.GET("/api/webinars/:id/payment/return", h.ConfirmPayment)
	r.POST("/api/webinars/:id/payment/cancel", h.CancelPayment)
	r.GET("/api/me/tickets", h.MyTickets)
	r.GET("/api/state", h.State)
	r.GET("/api/admin/webinars", h.AdminList)
	r.PATCH("/api/admin/webinars/:id/publish", h.Publish)
	r.GET("/api/admin/webinars/:id/applicants", h.Applicants)
	r.PATCH("/api/admin/applications/:id/approve", h.Approve)
	r.POST("/api/admin/webinars", h.Create)

	return &harness{router: r, backend: b, sess: sess}
}

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
}

func (h *harness) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestList_CardsWithButtons(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(t, http.MethodGet, "/api/webinars", nil)
	require.Equal(t, http.StatusOK, code)

	var view ListView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Len(t, view.Webinars, 3, "ended webinars are not listed")
	assert.Equal(t, "free", view.Webinars[0].ID)
	assert.Equal(t, "Register Now", view.Webinars[0].Button.Label)
	assert.Equal(t, "NGN 500", view.Webinars[2].PriceLabel)
}

func TestRegister_FreeOpensTicket(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(t, http.MethodPost, "/api/webinars/free/register", nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	var view RegistrationView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, registrations.StateRegistered, view.State)
	require.NotNil(t, view.Ticket)
	assert.NotEmpty(t, view.Ticket.Code)
	assert.Equal(t, "Free intro", view.Ticket.WebinarTitle)
	assert.Equal(t, "View Ticket", view.Button.Label)

	code, env = h.do(t, http.MethodPost, "/api/webinars/free/register", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "You have already applied for this webinar.", env.Error)
}

func TestSubmitAnswers_RequiredBlocksAPI(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(t, http.MethodPost, "/api/webinars/form/register", nil)
	require.Equal(t, http.StatusOK, code)
	var view RegistrationView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, registrations.StateAnswering, view.State)
	assert.Len(t, view.Questions, 1)

	code, env = h.do(t, http.MethodPost, "/api/webinars/form/answers", map[string]interface{}{"answers": map[string]string{"company": ""}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "This question is required.", env.Fields["company"])
	assert.Equal(t, 0, h.backend.CallCount("Apply"))

	code, _ = h.do(t, http.MethodPost, "/api/webinars/form/answers", map[string]interface{}{"answers": map[string]string{"company": "Acme"}})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, h.backend.CallCount("Apply"))
}

func TestPaidFlow_FailureThenSuccess(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(t, http.MethodPost, "/api/webinars/paid/register", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var view RegistrationView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, registrations.StatePaymentPending, view.State)
	assert.Contains(t, view.CheckoutURL, "https://checkout.example.com/pay/")
	assert.Empty(t, view.Questions)
	_, pending := h.sess.PendingCheckout("paid")
	assert.True(t, pending)

	code, env = h.do(t, http.MethodGet, "/api/webinars/paid/payment/return?status=cancelled", nil)
	assert.Equal(t, http.StatusConflict, code)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, registrations.StateNotApplied, view.State)
	assert.Nil(t, view.Ticket)

	code, _ = h.do(t, http.MethodPost, "/api/webinars/paid/register", nil)
	require.Equal(t, http.StatusOK, code)
	pc, _ := h.sess.PendingCheckout("paid")

	code, env = h.do(t, http.MethodPost, "/api/webinars/paid/payment/confirm", PaymentReturnRequest{Reference: pc.Reference, Status: "success"})
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, registrations.StateRegistered, view.State)
	require.NotNil(t, view.Ticket)

	code, env = h.do(t, http.MethodGet, "/api/me/tickets", nil)
	require.Equal(t, http.StatusOK, code)
	var tickets []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &tickets))
	assert.Len(t, tickets, 1)
}

func TestRegister_UpstreamFailureLeavesState(t *testing.T) {
	h := newHarness(t)
	h.backend.ErrInit = assert.AnError

	code, env := h.do(t, http.MethodPost, "/api/webinars/paid/register", nil)

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Something went wrong. Please try again.", env.Error)
	_, pending := h.sess.PendingCheckout("paid")
	assert.False(t, pending)

	_, env = h.do(t, http.MethodGet, "/api/state", nil)
	var st StateView
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, store.OpError, st.Ops[store.OpKey(store.OpInitPayment, "paid")].Status)
}

func TestAdmin_PublishApproveCreate(t *testing.T) {
	h := newHarness(t)
	h.backend.Webinars["draft"] = models.Webinar{ID: "draft", Title: "Draft"}
	h.backend.Applicants["free"] = []models.Application{{ID: "a1", WebinarID: "free", Status: models.StatusApplied}}

	code, _ := h.do(t, http.MethodGet, "/api/admin/webinars", nil)
	require.Equal(t, http.StatusOK, code)

	code, env := h.do(t, http.MethodPatch, "/api/admin/webinars/draft/publish", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.True(t, h.backend.Webinars["draft"].IsPublished)

	code, _ = h.do(t, http.MethodGet, "/api/admin/webinars/free/applicants", nil)
	require.Equal(t, http.StatusOK, code)
	code, env = h.do(t, http.MethodPatch, "/api/admin/applications/a1/approve", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var sv StatusView
	require.NoError(t, json.Unmarshal(env.Data, &sv))
	assert.Equal(t, "Approved", sv.Status)
	assert.Equal(t, store.OpSuccess, sv.Op.Status)

	code, env = h.do(t, http.MethodPost, "/api/admin/webinars", map[string]interface{}{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Fields, "title")
	assert.Contains(t, env.Fields, "scheduled_at")
}

func TestRegister_EarlierApplicationBlocksFreshStore(t *testing.T) {
	h := newHarness(t)
	h.backend.Applications = []models.Application{{ID: "a0", WebinarID: "free", Status: models.StatusRejected}}

	code, env := h.do(t, http.MethodPost, "/api/webinars/free/register", nil)

	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "You have already applied for this webinar.", env.Error)
	assert.Equal(t, 0, h.backend.CallCount("Apply"))
}

func TestRegister_AppliedWithTicketOpensTicket(t *testing.T) {
	h := newHarness(t)
	h.backend.Pending = true
	h.backend.PendingTicket = true

	code, env := h.do(t, http.MethodPost, "/api/webinars/free/register", nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	var view RegistrationView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, registrations.StateRegistered, view.State)
	require.NotNil(t, view.Ticket)
	assert.NotEmpty(t, view.Ticket.Code)
}
