package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/pulsechat/pulsechat/internal/auth"
	"github.com/pulsechat/pulsechat/internal/chat"
	"github.com/pulsechat/pulsechat/internal/platform/httpx"
)

// REST talks to the backend's JSON surface. The cookie jar carries the
// session token between calls.
type REST struct {
	base string
	http *http.Client
}

// NewREST constructs a REST client for the given base URL.
func NewREST(baseURL string) (*REST, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &REST{
		base: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{Jar: jar},
	}, nil
}

// HTTPClient exposes the underlying client so the websocket dialer can reuse
// the session cookie.
func (c *REST) HTTPClient() *http.Client {
	return c.http
}

// BaseURL returns the configured backend base URL.
func (c *REST) BaseURL() string {
	return c.base
}

// Signup registers an account and establishes the session cookie.
func (c *REST) Signup(ctx context.Context, fullName, email, password string) (auth.Profile, error) {
	var profile auth.Profile
	err := c.do(ctx, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullname": fullName,
		"email":    email,
		"password": password,
	}, &profile)
	return profile, err
}

// Login authenticates and establishes the session cookie.
func (c *REST) Login(ctx context.Context, email, password string) (auth.Profile, error) {
	var profile auth.Profile
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &profile)
	return profile, err
}

// Logout revokes the session.
func (c *REST) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// CheckAuth returns the authenticated profile for the current cookie.
func (c *REST) CheckAuth(ctx context.Context) (auth.Profile, error) {
	var profile auth.Profile
	err := c.do(ctx, http.MethodGet, "/api/auth/check", nil, &profile)
	return profile, err
}

// UpdateProfile uploads a new data-URL encoded avatar.
func (c *REST) UpdateProfile(ctx context.Context, imageDataURL string) (auth.Profile, error) {
	var profile auth.Profile
	err := c.do(ctx, http.MethodPut, "/api/auth/update-profile", map[string]string{
		"profilePic": imageDataURL,
	}, &profile)
	return profile, err
}

// Contacts fetches the user list.
func (c *REST) Contacts(ctx context.Context) ([]chat.Contact, error) {
	var contacts []chat.Contact
	err := c.do(ctx, http.MethodGet, "/api/message/users", nil, &contacts)
	return contacts, err
}

// Messages fetches the conversation with the given user.
func (c *REST) Messages(ctx context.Context, userID string) ([]chat.Message, error) {
	var messages []chat.Message
	err := c.do(ctx, http.MethodGet, "/api/message/"+userID, nil, &messages)
	return messages, err
}

// SendMessage posts a message with text and/or a data-URL image.
func (c *REST) SendMessage(ctx context.Context, recipientID, text, imageDataURL string) (chat.Message, error) {
	var msg chat.Message
	err := c.do(ctx, http.MethodPost, "/api/message/send/"+recipientID, map[string]string{
		"text":  text,
		"image": imageDataURL,
	}, &msg)
	return msg, err
}

func (c *REST) do(ctx context.Context, method, path string, body any, out any) error {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var problem httpx.ProblemDetail
		if err := json.NewDecoder(resp.Body).Decode(&problem); err == nil && problem.Title != "" {
			return &APIError{Status: resp.StatusCode, Title: problem.Title, Detail: problem.Detail}
		}
		return &APIError{Status: resp.StatusCode, Title: resp.Status}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// APIError is a non-2xx backend response.
type APIError struct {
	Status int
	Title  string
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Title)
}
