package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/templui/ressona/internal/ctxkeys"
	"github.com/templui/ressona/internal/identity"
	"github.com/templui/ressona/internal/respond"
)

// Identity resolves the caller's identity for every /api/ request and
// adds it to the context. Callers without a session are signed in
// anonymously; see identity.Provider.Resolve.
func Identity(provider *identity.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/api/auth/") {
				next.ServeHTTP(w, r)
				return
			}

			id, err := provider.Resolve(w, r)
			if err != nil {
				slog.Error("failed to resolve identity", "error", err, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			ctx := ctxkeys.WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity rejects requests that reached it without an identity.
func RequireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.Identity(r.Context()).IsZero() {
			respond.WriteError(w, http.StatusUnauthorized, "Sign in to continue.")
			return
		}
		next(w, r)
	}
}
