package chat

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pulsechat/pulsechat/internal/platform/httpx"
	"github.com/pulsechat/pulsechat/internal/shared"
)

// Handler wires HTTP endpoints for messaging. All routes require an
// authenticated caller in context.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers message routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/users", h.handleListContacts)
	r.Get("/{id}", h.handleHistory)
	r.Post("/send/{id}", h.handleSend)
}

type sendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

func (h *Handler) handleListContacts(w http.ResponseWriter, r *http.Request) {
	user := shared.UserFromContext(r.Context())
	if user == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	contacts, err := h.service.Contacts(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("list contacts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, contacts)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	user := shared.UserFromContext(r.Context())
	if user == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	otherID := chi.URLParam(r, "id")
	messages, err := h.service.History(r.Context(), user.ID, otherID)
	if err != nil {
		h.logger.Error("load history", slog.String("other", otherID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, messages)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	user := shared.UserFromContext(r.Context())
	if user == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	var req sendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}

	recipientID := chi.URLParam(r, "id")
	msg, err := h.service.Send(r.Context(), user.ID, recipientID, req.Text, req.Image)
	if err != nil {
		h.logger.Error("send message", slog.String("recipient", recipientID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, msg)
}
