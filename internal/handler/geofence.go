package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/securenest/securenest/internal/store"
)

// DefaultGeoFenceRadius is applied when a zone is created without a radius.
const DefaultGeoFenceRadius = 100.0

type GeoFenceHandler struct {
	fenceStore *store.GeoFenceStore
	logger     *slog.Logger
}

func NewGeoFenceHandler(gs *store.GeoFenceStore, logger *slog.Logger) *GeoFenceHandler {
	return &GeoFenceHandler{fenceStore: gs, logger: logger}
}

type createGeoFenceRequest struct {
	ParentID  string   `json:"parentId"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Radius    float64  `json:"radius"`
}

// Create handles POST /geofencing
func (h *GeoFenceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createGeoFenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if len(req.Name) < 2 {
		writeError(w, http.StatusBadRequest, "Name must be at least 2 characters")
		return
	}
	if req.ParentID == "" {
		writeError(w, http.StatusBadRequest, "parentId is required")
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	if *req.Latitude < -90 || *req.Latitude > 90 || *req.Longitude < -180 || *req.Longitude > 180 {
		writeError(w, http.StatusBadRequest, "Coordinates out of range")
		return
	}
	if req.Radius <= 0 {
		req.Radius = DefaultGeoFenceRadius
	}

	fence, err := h.fenceStore.Create(req.ParentID, req.Name, *req.Latitude, *req.Longitude, req.Radius)
	if err != nil {
		h.logger.Error("create geofence", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create geofence")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "geoFence": fence})
}

// ListByParent handles GET /geofencing/parent/{parentId}
func (h *GeoFenceHandler) ListByParent(w http.ResponseWriter, r *http.Request) {
	parentID := r.PathValue("parentId")

	fences, err := h.fenceStore.ListByParent(parentID)
	if err != nil {
		h.logger.Error("list geofences", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list geofences")
		return
	}
	if len(fences) == 0 {
		writeError(w, http.StatusNotFound, "No geofences found for this parent")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "geoFences": fences})
}

// List handles GET /geofencing
func (h *GeoFenceHandler) List(w http.ResponseWriter, r *http.Request) {
	fences, err := h.fenceStore.List()
	if err != nil {
		h.logger.Error("list all geofences", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list geofences")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "geoFences": fences})
}

// Delete handles DELETE /geofencing/{id}
func (h *GeoFenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	existing, err := h.fenceStore.GetByID(id)
	if err != nil {
		h.logger.Error("get geofence", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get geofence")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Geofence not found")
		return
	}

	if err := h.fenceStore.Delete(id); err != nil {
		h.logger.Error("delete geofence", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete geofence")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
