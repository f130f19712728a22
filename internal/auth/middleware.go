package auth

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// contextKey is unexported so only this package can read or write the
// user ID stored in a request context.
type contextKey string

const userIDKey contextKey = "userID"

// SessionCookie is the name of the HttpOnly cookie that carries the session
// token.
const SessionCookie = "token"

// RequireAuth guards API routes. A request without a valid session cookie
// gets 401 and never reaches the handler.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth attaches the user ID when a valid session is present and lets
// anonymous requests through unchanged.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens); err == nil {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the signed-in user, or ("", false) for an
// anonymous request.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// WithUserID returns a copy of ctx carrying userID. The middlewares use it,
// and handler tests use it to fake a signed-in request.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}

// SetSessionCookie stores a freshly issued session token on the response.
func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionDuration / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie signs the browser out. The token itself stays valid
// until it expires, but the browser no longer sends it.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// =========================================================================
// PAGE GATE
// =========================================================================

// GateRules say which pages are for signed-out visitors only and which
// require a session.
type GateRules struct {
	// Entry pages bounce a signed-in user to Home.
	Entry []string
	// Protected pages (and everything below them) bounce a signed-out
	// visitor to Login.
	Protected []string
	Home      string
	Login     string
}

// DefaultGateRules is the LinkSpark page layout.
var DefaultGateRules = GateRules{
	Entry:     []string{"/", "/login", "/register"},
	Protected: []string{"/dashboard", "/player"},
	Home:      "/dashboard",
	Login:     "/login",
}

// Decide returns where a request for path should be redirected, if anywhere.
func (g GateRules) Decide(path string, signedIn bool) (string, bool) {
	if signedIn {
		for _, p := range g.Entry {
			if path == p {
				return g.Home, true
			}
		}
		return "", false
	}
	for _, p := range g.Protected {
		if path == p || strings.HasPrefix(path, p+"/") {
			return g.Login, true
		}
	}
	return "", false
}

// GateDecision applies DefaultGateRules.
func GateDecision(path string, signedIn bool) (string, bool) {
	return DefaultGateRules.Decide(path, signedIn)
}

// Gate re-evaluates the session on every page request and redirects per
// rules. Pages that pass the gate see the user ID in their context like
// OptionalAuth would set it.
func Gate(tokens *TokenService, rules GateRules) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			signedIn := err == nil

			if target, redirect := rules.Decide(r.URL.Path, signedIn); redirect {
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			if signedIn {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}
