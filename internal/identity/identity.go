// Package identity carries the authenticated caller through request contexts.
// Authentication happens upstream; the gateway forwards the caller in headers.
package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	// HeaderUserID names the caller
	HeaderUserID = "X-User-ID"
	// HeaderUserRole carries the caller's role; "admin" grants privilege
	HeaderUserRole = "X-User-Role"

	roleAdmin = "admin"
)

// Caller is the user on whose behalf a request runs
type Caller struct {
	UserID  string
	IsAdmin bool
}

type contextKey struct{}

// WithCaller returns a copy of ctx carrying c
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the caller stored in ctx
func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(contextKey{}).(Caller)
	return c, ok && c.UserID != ""
}

// FromRequest reads the caller headers of r
func FromRequest(r *http.Request) Caller {
	return Caller{
		UserID:  strings.TrimSpace(r.Header.Get(HeaderUserID)),
		IsAdmin: strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderUserRole)), roleAdmin),
	}
}

// Middleware stores the caller headers in the request context.
// Requests without a caller pass through; handlers that need one reject them.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := FromRequest(r)
		if c.UserID == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), c)))
	})
}

// RequireCaller rejects requests that carry no caller with 401
func RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "Missing "+HeaderUserID+" header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects non-admin callers with 403
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Missing "+HeaderUserID+" header")
			return
		}
		if !c.IsAdmin {
			writeError(w, http.StatusForbidden, "Admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
