package http

import (
	"context"
	"net"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const SessionContextKey contextKey = "session"

const SessionCookie = "board_session"

const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline'; " +
	"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; " +
	"font-src 'self' https://fonts.gstatic.com; " +
	"img-src 'self'; " +
	"connect-src 'self';"

func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		next.ServeHTTP(w, r)
	})
}

// Sessions makes sure every request carries a board session id, issuing a
// cookie when the client has none. Session-scoped anti-forgery tokens are
// bound to this id.
func Sessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := ""
		if cookie, err := r.Cookie(SessionCookie); err == nil {
			if _, err := uuid.Parse(cookie.Value); err == nil {
				session = cookie.Value
			}
		}

		if session == "" {
			session = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    session,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func SessionFromContext(ctx context.Context) string {
	session, _ := ctx.Value(SessionContextKey).(string)
	return session
}

// ClientIdentity is the bare network address of the caller. Run chi's
// RealIP middleware first when serving behind a proxy.
func ClientIdentity(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
