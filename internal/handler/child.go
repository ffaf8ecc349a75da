package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/securenest/securenest/internal/model"
	"github.com/securenest/securenest/internal/store"
)

const codeGenAttempts = 10

type ChildHandler struct {
	childStore   *store.ChildStore
	historyStore *store.HistoryStore
	logger       *slog.Logger
}

func NewChildHandler(cs *store.ChildStore, hs *store.HistoryStore, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{childStore: cs, historyStore: hs, logger: logger}
}

type createChildRequest struct {
	ParentID          string                   `json:"parentId"`
	Name              string                   `json:"name"`
	Age               int                      `json:"age"`
	ProfilePicture    string                   `json:"profilePicture"`
	EmergencyContacts []model.EmergencyContact `json:"emergencyContacts"`
}

// Create handles POST /children. The family code is generated server-side
// and returned once; the parent relays it to the child device.
func (h *ChildHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createChildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.ParentID == "" {
		writeError(w, http.StatusBadRequest, "name and parentId are required")
		return
	}
	if req.Age < 0 {
		writeError(w, http.StatusBadRequest, "age must be non-negative")
		return
	}
	if req.ProfilePicture == "" {
		req.ProfilePicture = "https://api.dicebear.com/7.x/avataaars/svg?seed=" + url.QueryEscape(req.Name)
	}

	code, err := h.newFamilyCode()
	if err != nil {
		h.logger.Error("generate family code", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create child")
		return
	}

	child, err := h.childStore.Create(req.ParentID, code, req.Name, req.Age, req.ProfilePicture, req.EmergencyContacts)
	if err != nil {
		h.logger.Error("create child", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create child")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "child": child})
}

// Auth handles POST /children/auth: the child device exchanges its family
// code for the child record. This is the only credential a child device has.
func (h *ChildHandler) Auth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FamilyCode string `json:"familyCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.FamilyCode = strings.TrimSpace(req.FamilyCode)
	if req.FamilyCode == "" {
		writeError(w, http.StatusBadRequest, "familyCode is required")
		return
	}

	child, err := h.childStore.GetByFamilyCode(req.FamilyCode)
	if err != nil {
		h.logger.Error("auth child", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to authenticate")
		return
	}
	if child == nil {
		writeError(w, http.StatusUnauthorized, "Invalid family code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "child": child})
}

// ListByParent handles GET /children/by-parent/{parentId}
func (h *ChildHandler) ListByParent(w http.ResponseWriter, r *http.Request) {
	parentID := r.PathValue("parentId")

	children, err := h.childStore.ListByParent(parentID)
	if err != nil {
		h.logger.Error("list children", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list children")
		return
	}
	if children == nil {
		children = []model.Child{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "children": children})
}

// Locations handles GET /locations/children/{id}
func (h *ChildHandler) Locations(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	child, err := h.childStore.GetByID(id)
	if err != nil {
		h.logger.Error("get child", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get child")
		return
	}
	if child == nil {
		writeError(w, http.StatusNotFound, "Child not found")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	points, err := h.historyStore.ListRecent(child.FamilyCode, limit)
	if err != nil {
		h.logger.Error("list locations", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list locations")
		return
	}
	if points == nil {
		points = []model.LocationPoint{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "locations": points})
}

// newFamilyCode draws 6-digit codes until one is unused.
func (h *ChildHandler) newFamilyCode() (string, error) {
	for i := 0; i < codeGenAttempts; i++ {
		code := fmt.Sprintf("%06d", 100000+rand.IntN(900000))
		existing, err := h.childStore.GetByFamilyCode(code)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("family code space exhausted after %d attempts", codeGenAttempts)
}
