package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/ressona/internal/ctxkeys"
	"github.com/templui/ressona/internal/identity"
	"github.com/templui/ressona/internal/model"
)

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("1.2.3.4"))

	now = now.Add(3 * time.Minute)
	rl.cleanup()
	assert.Empty(t, rl.requests)
}

func TestRateLimitRespondsJSON(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	h := RateLimit(rl)(ok)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/anonymous", nil)
	req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")

	rec := httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"code":429`)
}

func TestIdentityOnlyForAPI(t *testing.T) {
	provider := identity.NewProvider("middleware-secret", time.Hour, false, "ressona")

	var seen model.Identity
	h := Identity(provider)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ctxkeys.Identity(r.Context())
	}))

	for _, path := range []string{"/healthz", "/api/auth/anonymous"} {
		seen = model.Identity{}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.True(t, seen.IsZero(), path)
		assert.Empty(t, rec.Result().Cookies(), path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	assert.Equal(t, model.IdentityAnonymous, seen.Kind)
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestRequireIdentity(t *testing.T) {
	h := RequireIdentity(ok)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req = req.WithContext(ctxkeys.WithIdentity(req.Context(), model.Identity{UserID: "u1", Kind: model.IdentityToken}))
	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLoggingKeepsFlusher(t *testing.T) {
	provider := identity.NewProvider("middleware-secret", time.Hour, false, "ressona")

	var flushed bool
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		flushed = http.NewResponseController(w).Flush() == nil
	}), RequestLogging, Identity(provider))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/intentions/stream", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, flushed)
	assert.True(t, rec.Flushed)
}

func TestUserIDSink(t *testing.T) {
	var userID string
	ctx := ctxkeys.WithUserIDSink(httptest.NewRequest(http.MethodGet, "/", nil).Context(), &userID)
	ctxkeys.WithIdentity(ctx, model.Identity{UserID: "u7"})
	assert.Equal(t, "u7", userID)
}
