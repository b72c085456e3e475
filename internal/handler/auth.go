package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/templui/ressona/internal/identity"
	"github.com/templui/ressona/internal/model"
	"github.com/templui/ressona/internal/respond"
)

type AuthHandler struct {
	provider *identity.Provider
}

func NewAuthHandler(provider *identity.Provider) *AuthHandler {
	return &AuthHandler{
		provider: provider,
	}
}

type tokenRequest struct {
	Token string `json:"token"`
}

// Anonymous signs the caller in as a new anonymous user.
func (h *AuthHandler) Anonymous(w http.ResponseWriter, r *http.Request) {
	if !h.provider.Available() {
		id, err := h.provider.Resolve(w, r)
		if err != nil {
			writeError(w, err, "Sign in is unavailable.")
			return
		}
		respond.WriteJSON(w, http.StatusOK, id)
		return
	}

	id, token, err := h.provider.SignInAnonymously()
	if err != nil {
		slog.Error("failed to sign in anonymously", "error", err)
		writeError(w, err, "Sign in failed. Try again.")
		return
	}

	h.provider.SetTokenCookie(w, token)
	respond.WriteJSON(w, http.StatusOK, id)
}

// Token exchanges a custom token for a session.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respond.WriteBadRequest(w, "A token is required.")
		return
	}

	id, token, err := h.provider.SignInWithToken(req.Token)
	if err != nil {
		slog.Warn("failed to sign in with token", "error", err)
		writeError(w, err, "The token could not be verified.")
		return
	}

	h.provider.SetTokenCookie(w, token)
	respond.WriteJSON(w, http.StatusOK, id)
}

// SignOut drops the session cookie. The next API call signs in anew.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.provider.ClearTokenCookie(w)
	respond.WriteJSON(w, http.StatusOK, model.Identity{})
}
