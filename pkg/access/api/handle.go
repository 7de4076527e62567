package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/attendance-gate/pkg/access"
	"github.com/tendant/attendance-gate/pkg/client"
	"github.com/tendant/attendance-gate/pkg/device"
)

// Handle serves the access state endpoint
type Handle struct {
	gateway *access.GatewayService
}

// NewHandle creates a new access handler
func NewHandle(gateway *access.GatewayService) *Handle {
	return &Handle{gateway: gateway}
}

// GetState returns the caller's access state for the presenting hardware
func (h *Handle) GetState(w http.ResponseWriter, r *http.Request) {
	authUser := client.GetAuthUser(r)
	if authUser == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	state, err := h.gateway.GetState(r.Context(), authUser.UserID, device.GetRequestFingerprint(r))
	if err != nil {
		client.RenderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, state)
}

// Handler returns a http.Handler for the access API
func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/state", h.GetState)
	return r
}
