package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"confluence-backend/internal/domain"
)

// DeviceHandler registers push notification targets.
type DeviceHandler struct {
	devices  domain.DeviceRepository
	maxBytes int64
}

func NewDeviceHandler(devices domain.DeviceRepository, maxBytes int64) *DeviceHandler {
	return &DeviceHandler{devices: devices, maxBytes: maxBytes}
}

type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type DeviceResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// RegisterRoutes registers device routes
func (h *DeviceHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/devices", h.Register).Methods(http.MethodPost)
	router.HandleFunc("/devices/count", h.Count).Methods(http.MethodGet)
	router.HandleFunc("/devices/{token}", h.Unregister).Methods(http.MethodDelete)
}

// Register handles POST /devices
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterDeviceRequest
	if err := decodeBody(w, r, h.maxBytes, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		sendError(w, http.StatusBadRequest, "Token is required")
		return
	}

	h.devices.Register(req.Token, req.Platform, time.Now().UTC())
	sendJSON(w, http.StatusCreated, DeviceResponse{
		Success: true,
		Message: "Token registered successfully",
		Count:   h.devices.Count(),
	})
}

// Unregister handles DELETE /devices/{token}
func (h *DeviceHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	if !h.devices.Unregister(mux.Vars(r)["token"]) {
		sendError(w, http.StatusNotFound, "Token not registered")
		return
	}
	sendJSON(w, http.StatusOK, DeviceResponse{
		Success: true,
		Message: "Token unregistered successfully",
		Count:   h.devices.Count(),
	})
}

// Count handles GET /devices/count
func (h *DeviceHandler) Count(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, DeviceResponse{
		Success: true,
		Message: "Token count retrieved",
		Count:   h.devices.Count(),
	})
}
