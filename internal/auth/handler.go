package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pulsechat/pulsechat/internal/platform/httpx"
	"github.com/pulsechat/pulsechat/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	tokens    *TokenManager
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, tokens *TokenManager) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		tokens:    tokens,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router. Routes that need
// an authenticated caller take the middleware as a parameter so the router
// composition stays in one place.
func (h *Handler) MountRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Post("/signup", h.handleSignup)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/check", h.handleCheck)
		r.Put("/update-profile", h.handleUpdateProfile)
	})
}

type signupRequest struct {
	FullName string `json:"fullname" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type updateProfileRequest struct {
	ProfilePic string `json:"profilePic" validate:"required"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}

	user, err := h.service.Signup(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	if err := h.establishSession(w, r, user); err != nil {
		h.logger.Error("establish session after signup", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, user.Profile())
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	if err := h.establishSession(w, r, user); err != nil {
		h.logger.Error("establish session after login", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, user.Profile())
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		tokenID, err := h.tokens.Revoke(r.Context(), cookie.Value)
		if err != nil {
			h.logger.Warn("revoke token", slog.Any("error", err))
		}
		if tokenID != "" {
			if err := h.service.RemoveSession(r.Context(), tokenID); err != nil {
				h.logger.Warn("remove session", slog.String("token_id", tokenID), slog.Any("error", err))
			}
		}
	}
	h.tokens.ClearCookie(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	user := shared.UserFromContext(r.Context())
	if user == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	httpx.JSON(w, http.StatusOK, Profile{
		ID:         user.ID,
		FullName:   user.FullName,
		Email:      user.Email,
		ProfilePic: user.ProfilePic,
	})
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := shared.UserFromContext(r.Context())
	if user == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "profile picture is required")
		return
	}

	updated, err := h.service.UpdateProfilePic(r.Context(), user.ID, req.ProfilePic)
	if err != nil {
		h.logger.Error("update profile picture", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated.Profile())
}

// establishSession issues the cookie token and records the audit row.
func (h *Handler) establishSession(w http.ResponseWriter, r *http.Request, user *User) error {
	token, tokenID, err := h.tokens.Issue(user.ID)
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(h.tokens.TTL())
	if err := h.service.RegisterSession(r.Context(), tokenID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	h.tokens.SetCookie(w, token)
	return nil
}

func validationDetail(err error) string {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		return errs[0].Error()
	}
	return "invalid request"
}
