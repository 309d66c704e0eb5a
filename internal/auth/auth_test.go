package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/internal/session"
	"github.com/aura-webinar/portal/pkg/apiclient"
)

func signToken(t *testing.T, secret, role string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "u-1",
		Email:  "ada@example.com",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

type upstream struct {
	mu    sync.Mutex
	hits  map[string]int
	token string
}

func (u *upstream) count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[path]
}

func (u *upstream) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.hits[r.URL.Path]++
		u.mu.Unlock()
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			if body["password"] != "correct-horse" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"success":false,"error":"Invalid email or password"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": map[string]interface{}{"token": u.token}})
		case "/auth/signup", "/auth/resend-otp":
			_, _ = w.Write([]byte(`{"success":true,"data":{"message":"code sent"}}`))
		case "/auth/verify-otp":
			if body["otp"] != "123456" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"success":false,"error":"Invalid or expired code"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": map[string]interface{}{
				"token": u.token,
				"user":  map[string]string{"id": "u-1", "email": body["email"], "full_name": "Ada", "role": "user"},
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

type dropper struct{ dropped []string }

func (d *dropper) Drop(id string) { d.dropped = append(d.dropped, id) }

type fixture struct {
	router *gin.Engine
	up     *upstream
	drops  *dropper
	h      *Handler
	logs   *observer.ObservedLogs
	cookie *http.Cookie
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	up := &upstream{hits: map[string]int{}, token: signToken(t, "upstream", "ADMIN", time.Now().Add(time.Hour))}
	srv := httptest.NewServer(up.handler())
	t.Cleanup(srv.Close)

	fs, err := session.NewFileStore(t.TempDir(), "secret")
	require.NoError(t, err)
	mgr := session.NewManager(fs, "portal_session", time.Hour, false, nil)

	core, logs := observer.New(zapcore.InfoLevel)
	drops := &dropper{}
	h := NewHandler(NewRepository(apiclient.New(srv.URL)), NewTokenInspector(""), mgr, drops, time.Minute, zap.New(core))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(session.ContextKey, mgr.Load(c))
		c.Next()
	})
	r.GET("/api/session", h.Session)
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/signup", h.Signup)
	r.POST("/api/auth/verify-otp", h.VerifyOTP)
	r.POST("/api/auth/resend-otp", h.ResendOTP)
	r.POST("/api/auth/logout", h.Logout)

	return &fixture{router: r, up: up, drops: drops, h: h, logs: logs}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if f.cookie != nil {
		req.AddCookie(f.cookie)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == "portal_session" {
			if c.MaxAge < 0 {
				f.cookie = nil
			} else {
				f.cookie = c
			}
		}
	}
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestLogin_SetsSessionAndRole(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "Ada@Example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, f.cookie)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, true, data["isAuthenticated"])

	w, body = f.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, true, data["isAuthenticated"])
	assert.Equal(t, "ADMIN", data["user"].(map[string]interface{})["role"])
	assert.Equal(t, 1, f.logs.FilterMessage("signed in").Len())
}

func TestLogin_UpstreamMessageSurfaces(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "nope"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", body["error"])
	_, body = f.do(t, http.MethodGet, "/api/session", nil)
	assert.Equal(t, false, body["data"].(map[string]interface{})["isAuthenticated"])
}

func TestLogin_MalformedEmailNeverCallsUpstream(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "not-an-email", "password": "x"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["fields"], "email")
	assert.Equal(t, 0, f.up.count("/auth/login"))
}

func TestSignup_PasswordMismatchIsInline(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"full_name": "Ada", "email": "ada@example.com", "password": "secret1", "confirm_password": "secret2",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "does not match", body["fields"].(map[string]interface{})["confirm_password"])
	assert.Equal(t, 0, f.up.count("/auth/signup"))
}

func TestSignupVerifyAndResendCooldown(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.h.now = func() time.Time { return now }

	w, body := f.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"full_name": "Ada", "email": "ada@example.com", "password": "secret1", "confirm_password": "secret1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["data"].(map[string]interface{})["requires_otp"])

	w, _ = f.do(t, http.MethodPost, "/api/auth/resend-otp", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, 0, f.up.count("/auth/resend-otp"))

	now = now.Add(61 * time.Second)
	w, _ = f.do(t, http.MethodPost, "/api/auth/resend-otp", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.up.count("/auth/resend-otp"))

	w, body = f.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{"otp": "000000"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or expired code", body["error"])

	w, body = f.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{"otp": "123456"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	user := body["data"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, "ada@example.com", user["email"])
	assert.Equal(t, "USER", user["role"])
}

func TestLogout_DropsStoreAndSession(t *testing.T) {
	f := newFixture(t)
	_, _ = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "correct-horse"})
	require.NotNil(t, f.cookie)
	sid := f.cookie.Value

	w, _ := f.do(t, http.MethodPost, "/api/auth/logout", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, f.drops.dropped, sid)
	assert.Nil(t, f.cookie)
}

func TestTokenInspector(t *testing.T) {
	live := signToken(t, "s3cret", "ADMIN", time.Now().Add(time.Hour))
	expired := signToken(t, "s3cret", "USER", time.Now().Add(-time.Hour))

	claims, err := NewTokenInspector("").Inspect(live)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.User().Role)

	_, err = NewTokenInspector("").Inspect(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = NewTokenInspector("s3cret").Inspect(live)
	assert.NoError(t, err)
	_, err = NewTokenInspector("other").Inspect(live)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = NewTokenInspector("s3cret").Inspect(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = NewTokenInspector("").Inspect("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
