package auth_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pulsechat/pulsechat/internal/auth"
	_ "github.com/pulsechat/pulsechat/testing"
)

func newAuthServer(t *testing.T) (*httptest.Server, *stubRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := newStubRepo()
	tokens := auth.NewTokenManager("test-secret", time.Hour, redisClient, false)
	service := auth.NewService(repo, &stubMedia{url: "https://cdn.test/avatar.png"})
	handler := auth.NewHandler(testLogger(), service, tokens)
	middleware := auth.Middleware{Tokens: tokens, Service: service}

	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		handler.MountRoutes(r, middleware.RequireAuth)
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, repo
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func newCookieClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func TestSignupSetsSessionCookie(t *testing.T) {
	server, _ := newAuthServer(t)
	client := newCookieClient(t)

	resp := postJSON(t, client, server.URL+"/api/auth/signup", map[string]string{
		"fullname": "Jane Doe",
		"email":    "jane@example.com",
		"password": "hunter42",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var profile auth.Profile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&profile))
	require.Equal(t, "Jane Doe", profile.FullName)
	require.NotEmpty(t, profile.ID)

	var sessionCookie bool
	for _, cookie := range resp.Cookies() {
		if cookie.Name == auth.CookieName && cookie.Value != "" {
			sessionCookie = true
			require.True(t, cookie.HttpOnly)
		}
	}
	require.True(t, sessionCookie, "signup should set the session cookie")
}

func TestSignupValidation(t *testing.T) {
	server, _ := newAuthServer(t)
	client := newCookieClient(t)

	resp := postJSON(t, client, server.URL+"/api/auth/signup", map[string]string{
		"fullname": "Jane",
		"email":    "not-an-email",
		"password": "hunter42",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, client, server.URL+"/api/auth/signup", map[string]string{
		"fullname": "Jane",
		"email":    "jane@example.com",
		"password": "short",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginInvalidCredentials(t *testing.T) {
	server, _ := newAuthServer(t)
	client := newCookieClient(t)

	resp := postJSON(t, client, server.URL+"/api/auth/signup", map[string]string{
		"fullname": "Jane", "email": "jane@example.com", "password": "hunter42",
	})
	resp.Body.Close()

	resp = postJSON(t, newCookieClient(t), server.URL+"/api/auth/login", map[string]string{
		"email": "jane@example.com", "password": "wrong-password",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckRequiresCookie(t *testing.T) {
	server, _ := newAuthServer(t)

	resp, err := http.Get(server.URL + "/api/auth/check")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginCheckLogoutRoundTrip(t *testing.T) {
	server, _ := newAuthServer(t)
	client := newCookieClient(t)

	resp := postJSON(t, client, server.URL+"/api/auth/signup", map[string]string{
		"fullname": "Jane", "email": "jane@example.com", "password": "hunter42",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err := client.Get(server.URL + "/api/auth/check")
	require.NoError(t, err)
	var profile auth.Profile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&profile))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "jane@example.com", profile.Email)

	resp = postJSON(t, client, server.URL+"/api/auth/logout", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The cookie was cleared and the token revoked; the session is gone even
	// if a stale copy of the token is replayed.
	resp, err = client.Get(server.URL + "/api/auth/check")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUpdateProfileStoresUploadedURL(t *testing.T) {
	server, _ := newAuthServer(t)
	client := newCookieClient(t)

	resp := postJSON(t, client, server.URL+"/api/auth/signup", map[string]string{
		"fullname": "Jane", "email": "jane@example.com", "password": "hunter42",
	})
	resp.Body.Close()

	payload, err := json.Marshal(map[string]string{"profilePic": "data:image/png;base64,aGk="})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, server.URL+"/api/auth/update-profile", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err = client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var profile auth.Profile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&profile))
	require.Equal(t, "https://cdn.test/avatar.png", profile.ProfilePic)
}
