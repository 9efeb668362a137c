package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Clark-Hu/movplay/internal/domain"
)

type ctxKeyUserID struct{}
type ctxKeyRole struct{}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyUserID{}).(string)
	return v, ok && v != ""
}

// RoleFromContext returns the authenticated user's role, if any.
func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyRole{}).(string)
	return v, ok
}

// WithUser injects identity into ctx. Useful for testing.
func WithUser(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUserID{}, userID)
	return context.WithValue(ctx, ctxKeyRole{}, role)
}

func bearerToken(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func (t *Tokens) identify(r *http.Request) (context.Context, bool) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, false
	}
	claims, err := t.Parse(raw)
	if err != nil {
		return nil, false
	}
	return WithUser(r.Context(), claims.Subject, claims.Role), true
}

// RequireUser rejects requests without a valid bearer token.
func (t *Tokens) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, ok := t.identify(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalUser attaches identity when a valid token is present and
// otherwise lets the request through anonymously.
func (t *Tokens) OptionalUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ctx, ok := t.identify(r); ok {
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin must run after RequireUser.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := RoleFromContext(r.Context())
		if role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}
