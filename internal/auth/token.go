package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pulsechat/pulsechat/internal/shared"
)

// CookieName is the session cookie carrying the signed token.
const CookieName = "jwt"

// Claims extends the registered JWT claims with the account identifier.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// TokenManager issues and verifies HS256 session tokens. Logged-out tokens
// are held in a Redis deny list until their natural expiry.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	redis  *redis.Client
	secure bool
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(secret string, ttl time.Duration, client *redis.Client, secure bool) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		redis:  client,
		secure: secure,
	}
}

// TTL returns the configured token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue signs a new token for the user. The returned token ID keys the
// session audit row and the revocation entry.
func (tm *TokenManager) Issue(userID string) (token string, tokenID string, err error) {
	tokenID = uuid.NewString()
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
		UserID: userID,
	})
	token, err = t.SignedString(tm.secret)
	if err != nil {
		return "", "", err
	}
	return token, tokenID, nil
}

// Verify parses the token, checks the signature and expiry, and rejects
// revoked tokens. It returns the embedded user identifier.
func (tm *TokenManager) Verify(ctx context.Context, token string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return tm.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", shared.ErrInvalidToken
	}

	if tm.redis != nil && claims.ID != "" {
		revoked, err := tm.redis.Exists(ctx, revocationKey(claims.ID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return "", err
		}
		if revoked > 0 {
			return "", shared.ErrTokenRevoked
		}
	}

	return claims.UserID, nil
}

// Revoke marks the token as unusable until it would have expired anyway and
// returns its ID so the caller can drop the matching session row.
func (tm *TokenManager) Revoke(ctx context.Context, token string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return tm.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid || claims.ID == "" {
		// Expired or garbage tokens need no deny-list entry.
		return "", nil
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 || tm.redis == nil {
		return claims.ID, nil
	}
	return claims.ID, tm.redis.Set(ctx, revocationKey(claims.ID), "1", remaining).Err()
}

// SetCookie writes the token as an HttpOnly session cookie.
func (tm *TokenManager) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(tm.ttl.Seconds()),
		HttpOnly: true,
		Secure:   tm.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearCookie expires the session cookie.
func (tm *TokenManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   tm.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func revocationKey(tokenID string) string {
	return "pulsechat:revoked:" + tokenID
}
