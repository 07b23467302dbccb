package app_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/pulsechat/pulsechat/internal/app"
	_ "github.com/pulsechat/pulsechat/testing"
)

func newLimitedServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Use(app.AuthRateLimiter())
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	r.Get("/check", ok)
	r.Post("/login", ok)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func TestAuthRateLimiterThrottlesCredentialPosts(t *testing.T) {
	server := newLimitedServer(t)

	var last int
	for i := 0; i < 11; i++ {
		resp, err := http.Post(server.URL+"/login", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		last = resp.StatusCode
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}

func TestAuthRateLimiterExemptsCheckPolling(t *testing.T) {
	server := newLimitedServer(t)

	// Exhaust the POST budget first, then keep polling.
	for i := 0; i < 11; i++ {
		resp, err := http.Post(server.URL+"/login", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
	}
	for i := 0; i < 20; i++ {
		resp, err := http.Get(server.URL + "/check")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}
