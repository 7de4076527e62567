package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/attendance-gate/pkg/client"
	apperrors "github.com/tendant/attendance-gate/pkg/errors"
	"github.com/tendant/attendance-gate/pkg/handshake"
	"github.com/tendant/attendance-gate/pkg/login"
)

// Handle serves the login endpoints
type Handle struct {
	ecdh   *login.EcdhUseCase
	logout *login.LogoutUseCase
}

// NewHandle creates a new login handler
func NewHandle(ecdh *login.EcdhUseCase, logout *login.LogoutUseCase) *Handle {
	return &Handle{ecdh: ecdh, logout: logout}
}

// EcdhRequest represents the request body for the handshake endpoint
type EcdhRequest struct {
	CredentialID    string `json:"credentialId"`
	ClientPublicKey string `json:"clientPublicKey"`
}

// Ecdh runs the login handshake for the caller
func (h *Handle) Ecdh(w http.ResponseWriter, r *http.Request) {
	authUser := client.GetAuthUser(r)
	if authUser == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req EcdhRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		client.RenderError(w, r, apperrors.InvalidInput("body", err.Error()))
		return
	}
	if req.CredentialID == "" || req.ClientPublicKey == "" {
		client.RenderError(w, r, apperrors.InvalidInput("body", "credentialId and clientPublicKey are required"))
		return
	}

	if _, err := handshake.DecodePublicKey(req.ClientPublicKey); err != nil {
		client.RenderError(w, r, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid clientPublicKey"))
		return
	}

	out, err := h.ecdh.Execute(r.Context(), login.EcdhInput{
		UserID:          authUser.UserID,
		CredentialID:    req.CredentialID,
		ClientPublicKey: req.ClientPublicKey,
	})
	if err != nil {
		client.RenderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, out)
}

// Logout clears the caller's session key
func (h *Handle) Logout(w http.ResponseWriter, r *http.Request) {
	authUser := client.GetAuthUser(r)
	if authUser == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.logout.Execute(r.Context(), authUser.UserID); err != nil {
		client.RenderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Handler returns a http.Handler for the login API
func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Post("/ecdh", h.Ecdh)
	r.Post("/logout", h.Logout)
	return r
}
