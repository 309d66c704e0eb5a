package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestDo_UnwrapsEnvelopeAndSendsToken(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"w1","title":"Go"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL + "/api/v1").WithToken("tok")
	var out item
	require.NoError(t, c.Get(context.Background(), "/webinars/w1", &out))

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/api/v1/webinars/w1", gotPath)
	assert.Equal(t, item{ID: "w1", Title: "Go"}, out)
}

func TestDo_DecodesBareBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"a"},{"id":"b"}]`))
	}))
	defer srv.Close()

	var out []item
	require.NoError(t, New(srv.URL).Get(context.Background(), "/x", &out))
	assert.Len(t, out, 2)
}

func TestDo_APIErrorCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"success":false,"message":"already applied"}`))
	}))
	defer srv.Close()

	err := New(srv.URL).Post(context.Background(), "/apply", map[string]string{"a": "b"}, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "already applied", apiErr.Message)
	assert.True(t, IsStatus(err, http.StatusConflict))
}

func TestDo_APIErrorWithoutMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	err := New(srv.URL).Get(context.Background(), "/x", nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Empty(t, apiErr.Message)
}

func TestDo_SuccessFalseInOKResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"webinar closed"}`))
	}))
	defer srv.Close()

	var out item
	err := New(srv.URL).Get(context.Background(), "/x", &out)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "webinar closed", apiErr.Message)
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	err := New(srv.URL, WithTimeout(20*time.Millisecond)).Get(context.Background(), "/slow", nil)
	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
}

func TestWithToken_DoesNotMutateOriginal(t *testing.T) {
	base := New("http://example.invalid")
	authed := base.WithToken("abc")
	assert.Empty(t, base.Token())
	assert.Equal(t, "abc", authed.Token())
}
