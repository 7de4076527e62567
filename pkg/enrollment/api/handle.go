package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"
	"github.com/tendant/attendance-gate/pkg/client"
	"github.com/tendant/attendance-gate/pkg/device"
	"github.com/tendant/attendance-gate/pkg/enrollment"
	apperrors "github.com/tendant/attendance-gate/pkg/errors"
)

// VerifierRole is required to post verified credentials
const VerifierRole = "enrollment-verifier"

// Handle serves the enrollment endpoints
type Handle struct {
	orchestrator *enrollment.FlowOrchestrator
	completion   *enrollment.CompletionService
}

// NewHandle creates a new enrollment handler
func NewHandle(orchestrator *enrollment.FlowOrchestrator, completion *enrollment.CompletionService) *Handle {
	return &Handle{orchestrator: orchestrator, completion: completion}
}

// ConsentRequest represents the request body for the consent endpoint
type ConsentRequest struct {
	Consent enrollment.Consent `json:"consent"`
}

// DeviceResponse is the public view of a device
type DeviceResponse struct {
	DeviceID          int64    `json:"deviceId"`
	CredentialID      string   `json:"credentialId"`
	AAGUID            string   `json:"aaguid"`
	DeviceFingerprint string   `json:"deviceFingerprint"`
	Status            string   `json:"status"`
	IsActive          bool     `json:"isActive"`
	Transports        []string `json:"transports,omitempty"`
}

// CompleteResponse represents the response body of the complete endpoint
type CompleteResponse struct {
	Device    DeviceResponse `json:"device"`
	Duplicate bool           `json:"duplicate"`
	// OwnDevicesRevoked counts the caller's devices superseded by this one
	OwnDevicesRevoked int `json:"ownDevicesRevoked"`
	// PreviousUserID is set when the hardware was taken over from another user
	PreviousUserID int64 `json:"previousUserId,omitempty"`
}

func toDeviceResponse(d device.Device) (DeviceResponse, error) {
	var resp DeviceResponse
	if err := copier.Copy(&resp, &d); err != nil {
		return DeviceResponse{}, err
	}
	resp.Status = string(d.Status)
	return resp, nil
}

// AttemptAccess evaluates the caller against the presenting hardware
func (h *Handle) AttemptAccess(w http.ResponseWriter, r *http.Request) {
	authUser := client.GetAuthUser(r)
	if authUser == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	out, err := h.orchestrator.AttemptAccess(r.Context(), authUser.UserID, device.GetRequestFingerprint(r))
	if err != nil {
		client.RenderError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, out)
}

// Consent records the caller's answer to the replacement prompt
func (h *Handle) Consent(w http.ResponseWriter, r *http.Request) {
	authUser := client.GetAuthUser(r)
	if authUser == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req ConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		client.RenderError(w, r, apperrors.InvalidInput("body", err.Error()))
		return
	}

	consent := enrollment.Consent(strings.ToUpper(strings.TrimSpace(string(req.Consent))))
	decision, err := h.orchestrator.ProcessEnrollmentConsent(r.Context(), authUser.UserID, consent)
	if err != nil {
		client.RenderError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, decision)
}

// Complete stores a credential accepted by the WebAuthn verifier
func (h *Handle) Complete(w http.ResponseWriter, r *http.Request) {
	var req enrollment.VerifiedCredential
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		client.RenderError(w, r, apperrors.InvalidInput("body", err.Error()))
		return
	}

	result, err := h.completion.Complete(r.Context(), req)
	if err != nil {
		client.RenderError(w, r, err)
		return
	}

	dev, err := toDeviceResponse(result.Device)
	if err != nil {
		client.RenderError(w, r, err)
		return
	}
	resp := CompleteResponse{Device: dev, Duplicate: result.Duplicate}
	if result.Revocation != nil {
		resp.OwnDevicesRevoked = result.Revocation.OwnDevicesRevoked
		if result.Revocation.PreviousUserUnlinked != nil {
			resp.PreviousUserID = result.Revocation.PreviousUserUnlinked.UserID
		}
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}

// Handler returns a http.Handler for the enrollment API
func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/attempt", h.AttemptAccess)
	r.Post("/consent", h.Consent)
	r.With(client.RequireRole(VerifierRole)).Post("/complete", h.Complete)
	return r
}
