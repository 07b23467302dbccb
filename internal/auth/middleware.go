package auth

import (
	"log/slog"
	"net/http"

	"github.com/pulsechat/pulsechat/internal/platform/httpx"
	"github.com/pulsechat/pulsechat/internal/shared"
)

// Middleware authenticates requests from the session cookie.
type Middleware struct {
	Logger  *slog.Logger
	Tokens  *TokenManager
	Service *Service
}

// RequireAuth verifies the cookie token, loads the account and stores it in
// the request context. Requests without a valid token get a 401 problem.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
			return
		}

		userID, err := m.Tokens.Verify(r.Context(), cookie.Value)
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
			return
		}

		user, err := m.Service.GetByID(r.Context(), userID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("token for unknown user", slog.String("user_id", userID))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
			return
		}

		ctx := shared.ContextWithUser(r.Context(), &shared.AuthUser{
			ID:         user.ID,
			Email:      user.Email,
			FullName:   user.FullName,
			ProfilePic: user.ProfilePic,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
