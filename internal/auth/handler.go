package auth

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/portal/internal/apperror"
	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/internal/session"
	"github.com/aura-webinar/portal/pkg/response"
)

// StoreDropper forgets a session's cached webinar state.
type StoreDropper interface {
	Drop(sessionID string)
}

// SessionView is the body of GET /api/session and of successful sign-ins.
type SessionView struct {
	IsAuthenticated bool               `json:"isAuthenticated"`
	User            *models.UserPublic `json:"user"`
}

// OTPView tells the page an emailed code is awaited.
type OTPView struct {
	RequiresOTP       bool   `json:"requires_otp"`
	Email             string `json:"email"`
	ResendAvailableIn int    `json:"resend_available_in"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo     *Repository
	tokens   *TokenInspector
	sessions *session.Manager
	stores   StoreDropper
	cooldown time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, tokens *TokenInspector, sessions *session.Manager, stores StoreDropper, cooldown time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, tokens: tokens, sessions: sessions, stores: stores, cooldown: cooldown, logger: logger, now: time.Now}
}

// Session handles GET /api/session.
func (h *Handler) Session(c *gin.Context) {
	s := session.Current(c)
	view := SessionView{IsAuthenticated: s.IsAuthenticated()}
	if view.IsAuthenticated {
		view.User = s.User
	}
	response.OK(c, view)
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !h.bind(c, &req) {
		return
	}
	req.Email = normalizeEmail(req.Email)

	out, err := h.repo.Login(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "login", err)
		return
	}
	s := session.Current(c)
	if out.RequiresOTP || out.Token == "" {
		h.awaitOTP(c, s, req.Email)
		return
	}
	h.signIn(c, s, out)
}

// Signup handles POST /api/auth/signup.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if !h.bind(c, &req) {
		return
	}
	req.Email = normalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)

	if err := h.repo.Signup(c.Request.Context(), req); err != nil {
		h.fail(c, "signup", err)
		return
	}
	h.logger.Info("signup accepted, awaiting otp", zap.String("email", req.Email))
	h.awaitOTP(c, session.Current(c), req.Email)
}

// VerifyOTP handles POST /api/auth/verify-otp.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if !h.bind(c, &req) {
		return
	}
	s := session.Current(c)
	email := normalizeEmail(req.Email)
	if email == "" {
		email = s.PendingOTPEmail
	}
	if email == "" {
		response.Fail(c, http.StatusBadRequest, "Please fix the highlighted fields.", map[string]string{"email": "is required"})
		return
	}

	out, err := h.repo.VerifyOTP(c.Request.Context(), email, strings.TrimSpace(req.OTP))
	if err != nil {
		h.fail(c, "verify otp", err)
		return
	}
	if out.Token == "" {
		h.fail(c, "verify otp", &apperror.Conflict{Message: "Verification did not complete. Please try again."})
		return
	}
	h.signIn(c, s, out)
}

// ResendOTP handles POST /api/auth/resend-otp. Requests inside the cooldown are refused.
func (h *Handler) ResendOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" validate:"omitempty,email"`
	}
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	s := session.Current(c)
	email := normalizeEmail(req.Email)
	if email == "" {
		email = s.PendingOTPEmail
	}
	if email == "" {
		response.Fail(c, http.StatusBadRequest, "Please fix the highlighted fields.", map[string]string{"email": "is required"})
		return
	}
	if wait := s.OTPResendAvailableAt.Sub(h.now()); wait > 0 {
		c.Header("Retry-After", formatSeconds(wait))
		response.TooManyRequests(c, "Please wait before requesting another code.")
		return
	}

	if err := h.repo.ResendOTP(c.Request.Context(), email); err != nil {
		h.fail(c, "resend otp", err)
		return
	}
	h.awaitOTP(c, s, email)
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	s := session.Current(c)
	if h.stores != nil {
		h.stores.Drop(s.ID)
	}
	if err := h.sessions.Destroy(c, s); err != nil {
		h.logger.Warn("session delete failed", zap.String("session_id", s.ID), zap.Error(err))
	}
	response.OK(c, SessionView{IsAuthenticated: false})
}

func (h *Handler) signIn(c *gin.Context, s *session.Session, out *TokenResponse) {
	user := out.User
	claims, err := h.tokens.Inspect(out.Token)
	if err != nil {
		h.logger.Warn("upstream issued an unreadable token", zap.Error(err))
		response.Unauthorized(c, "Your session could not be started. Please sign in again.")
		return
	}
	if user == nil {
		user = claims.User()
	}
	role := string(user.Role)
	if role == "" {
		role = claims.Role
	}
	user.Role = models.ParseRole(role)
	if h.stores != nil {
		h.stores.Drop(s.ID)
	}
	s.SignIn(out.Token, user)
	if err := h.sessions.Save(c, s); err != nil {
		h.logger.Error("session save failed", zap.Error(err))
		response.Internal(c, apperror.GenericMessage)
		return
	}
	h.logger.Info("signed in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	response.OK(c, SessionView{IsAuthenticated: true, User: user})
}

func (h *Handler) awaitOTP(c *gin.Context, s *session.Session, email string) {
	s.PendingOTPEmail = email
	s.OTPResendAvailableAt = h.now().Add(h.cooldown)
	if err := h.sessions.Save(c, s); err != nil {
		h.logger.Error("session save failed", zap.Error(err))
		response.Internal(c, apperror.GenericMessage)
		return
	}
	response.OK(c, OTPView{RequiresOTP: true, Email: email, ResendAvailableIn: int(h.cooldown.Seconds())})
}

// bind decodes and validates the JSON body, replying 400 with field messages on failure.
func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, "invalid request body")
		return false
	}
	if err := apperror.ValidateStruct(req); err != nil {
		response.Fail(c, apperror.Status(err), apperror.UserMessage(err), apperror.Fields(err))
		return false
	}
	return true
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := apperror.Status(err)
	if status >= 500 {
		h.logger.Error(op+" failed", zap.Error(err))
	}
	response.Fail(c, status, apperror.UserMessage(err), apperror.Fields(err))
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func formatSeconds(d time.Duration) string {
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}
