// Package identity issues and verifies the per-user identity: anonymous or
// custom-token sign-in backed by HS256 session tokens, with a locally
// generated fallback id when no signing secret is configured.
package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/templui/ressona/internal/model"
)

var (
	ErrIdentityUnavailable = errors.New("identity provider unavailable")
	ErrInvalidToken        = errors.New("invalid token")
)

const (
	TokenCookie    = "auth_token"
	FallbackCookie = "ressona_uid"
)

// Provider signs users in. A Provider without a secret is unavailable and
// hands out fallback identities instead.
type Provider struct {
	secret   []byte
	expiry   time.Duration
	secure   bool
	issuer   string
	now      func() time.Time
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(model.Identity)
}

func NewProvider(secret string, expiry time.Duration, secure bool, issuer string) *Provider {
	return &Provider{
		secret:   []byte(secret),
		expiry:   expiry,
		secure:   secure,
		issuer:   issuer,
		now:      time.Now,
		handlers: make(map[int]func(model.Identity)),
	}
}

func (p *Provider) Available() bool {
	return len(p.secret) > 0
}

// OnAuthStateChanged registers fn for every identity established from now
// on. The returned func unregisters it.
func (p *Provider) OnAuthStateChanged(fn func(model.Identity)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.handlers, id)
		p.mu.Unlock()
	}
}

func (p *Provider) notify(id model.Identity) {
	p.mu.Lock()
	handlers := make([]func(model.Identity), 0, len(p.handlers))
	for _, fn := range p.handlers {
		handlers = append(handlers, fn)
	}
	p.mu.Unlock()

	for _, fn := range handlers {
		fn(id)
	}
}

// SignInAnonymously creates a new user and returns its session token.
func (p *Provider) SignInAnonymously() (model.Identity, string, error) {
	if !p.Available() {
		return model.Identity{}, "", ErrIdentityUnavailable
	}

	id := model.Identity{UserID: uuid.New().String(), Kind: model.IdentityAnonymous}
	token, err := p.sign(id)
	if err != nil {
		return model.Identity{}, "", err
	}

	slog.Info("signed in anonymously", "user_id", id.UserID)
	p.notify(id)
	return id, token, nil
}

// SignInWithToken exchanges a custom token minted by IssueCustomToken for a
// session token.
func (p *Provider) SignInWithToken(customToken string) (model.Identity, string, error) {
	if !p.Available() {
		return model.Identity{}, "", ErrIdentityUnavailable
	}

	claims, err := p.parse(customToken)
	if err != nil {
		return model.Identity{}, "", err
	}
	if kind, _ := claims["kind"].(string); kind != "custom" {
		return model.Identity{}, "", fmt.Errorf("%w: not a custom token", ErrInvalidToken)
	}

	userID, _ := claims["user_id"].(string)
	id := model.Identity{UserID: userID, Kind: model.IdentityToken}
	token, err := p.sign(id)
	if err != nil {
		return model.Identity{}, "", err
	}

	slog.Info("signed in with token", "user_id", id.UserID)
	p.notify(id)
	return id, token, nil
}

// IssueCustomToken mints a token that signs userID in once exchanged.
func (p *Provider) IssueCustomToken(userID string, ttl time.Duration) (string, error) {
	if !p.Available() {
		return "", ErrIdentityUnavailable
	}
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidToken)
	}

	now := p.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"kind":    "custom",
		"iss":     p.issuer,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

func (p *Provider) sign(id model.Identity) (string, error) {
	now := p.now()
	claims := jwt.MapClaims{
		"user_id": id.UserID,
		"kind":    string(id.Kind),
		"iss":     p.issuer,
		"exp":     now.Add(p.expiry).Unix(),
		"iat":     now.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (p *Provider) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if userID, _ := claims["user_id"].(string); userID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	return claims, nil
}

// Verify checks a session token.
func (p *Provider) Verify(tokenString string) (model.Identity, error) {
	if !p.Available() {
		return model.Identity{}, ErrIdentityUnavailable
	}

	claims, err := p.parse(tokenString)
	if err != nil {
		return model.Identity{}, err
	}

	kind := model.IdentityKind(fmt.Sprint(claims["kind"]))
	if kind != model.IdentityAnonymous && kind != model.IdentityToken {
		return model.Identity{}, fmt.Errorf("%w: not a session token", ErrInvalidToken)
	}

	userID, _ := claims["user_id"].(string)
	return model.Identity{UserID: userID, Kind: kind}, nil
}

// Resolve yields the caller's identity. A valid session cookie wins;
// without one the caller is signed in anonymously, or handed a fallback
// id while the provider is unavailable.
func (p *Provider) Resolve(w http.ResponseWriter, r *http.Request) (model.Identity, error) {
	if !p.Available() {
		return p.fallback(w, r), nil
	}

	if cookie, err := r.Cookie(TokenCookie); err == nil {
		id, err := p.Verify(cookie.Value)
		if err == nil {
			return id, nil
		}
		slog.Debug("discarding invalid session token", "error", err)
	}

	id, token, err := p.SignInAnonymously()
	if err != nil {
		return model.Identity{}, err
	}
	p.SetTokenCookie(w, token)
	return id, nil
}

func (p *Provider) fallback(w http.ResponseWriter, r *http.Request) model.Identity {
	if cookie, err := r.Cookie(FallbackCookie); err == nil {
		if _, err := uuid.Parse(cookie.Value); err == nil {
			return model.Identity{UserID: cookie.Value, Kind: model.IdentityFallback}
		}
	}

	id := model.Identity{UserID: uuid.New().String(), Kind: model.IdentityFallback}
	http.SetCookie(w, &http.Cookie{
		Name:     FallbackCookie,
		Value:    id.UserID,
		Expires:  p.now().Add(p.expiry),
		Path:     "/",
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	})

	slog.Warn("identity provider unavailable, using local identity", "user_id", id.UserID)
	p.notify(id)
	return id
}

func (p *Provider) SetTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Expires:  p.now().Add(p.expiry),
		Path:     "/",
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (p *Provider) ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		Path:     "/",
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
