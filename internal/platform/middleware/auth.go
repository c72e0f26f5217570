package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"certledger/internal/domain"
	"certledger/internal/jwtauth"
)

// TokenValidator validates an access token into a caller identity.
type TokenValidator interface {
	IdentityFromToken(tokenString string) (jwtauth.Identity, error)
}

type contextKeyIdentity struct{}

// ContextKeyIdentity is exported for use in handlers.
var ContextKeyIdentity = contextKeyIdentity{}

// GetIdentity retrieves the authenticated caller from the context.
func GetIdentity(ctx context.Context) (jwtauth.Identity, bool) {
	id, ok := ctx.Value(ContextKeyIdentity).(jwtauth.Identity)
	return id, ok
}

// ContextWithIdentity injects a caller identity. Handler tests use this to
// bypass token minting.
func ContextWithIdentity(ctx context.Context, identity jwtauth.Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, identity)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller identity on the context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(r.Context(), "unauthorized access - missing token",
					"request_id", GetRequestID(r.Context()),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			identity, err := validator.IdentityFromToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// RequireCapability gates a route to callers holding one of the listed
// capabilities. Must run after RequireAuth.
func RequireCapability(caps ...domain.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := GetIdentity(r.Context())
			if !ok {
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}
			for _, c := range caps {
				if identity.Capability == c {
					next.ServeHTTP(w, r)
					return
				}
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"caller capability does not permit this operation"}`))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
