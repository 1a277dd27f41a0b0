package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/DiscordEmotes/website/pkg/auth"
)

type contextKey string

const (
	SessionIDKey contextKey = "sessionID"
	UserIDKey    contextKey = "userID"
)

// SessionCookieName is the cookie carrying the signed session JWT.
const SessionCookieName = "emote_session"

// SessionMiddleware resolves the session cookie (or a Bearer header) into
// context values. An absent, invalid, or expired token degrades to an
// anonymous request rather than failing it; handlers that need a login call
// RequireSession themselves.
func SessionMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := sessionTokenFrom(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ValidateSessionToken(tokenString, secret)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), SessionIDKey, claims.SessionID)
			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionTokenFrom(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// GetSessionID extracts the session id from context
func GetSessionID(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(SessionIDKey).(string)
	return sessionID, ok
}

// GetUserID extracts the Discord user id from context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// RequireSession returns the session and user ids, or ErrInvalidToken when
// the request is anonymous.
func RequireSession(ctx context.Context) (sessionID, userID string, err error) {
	sessionID, ok := GetSessionID(ctx)
	if !ok {
		return "", "", auth.ErrInvalidToken
	}
	userID, ok = GetUserID(ctx)
	if !ok {
		return "", "", auth.ErrInvalidToken
	}
	return sessionID, userID, nil
}
