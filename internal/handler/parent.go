package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/securenest/securenest/internal/store"
)

type ParentHandler struct {
	parentStore *store.ParentStore
	logger      *slog.Logger
}

func NewParentHandler(ps *store.ParentStore, logger *slog.Logger) *ParentHandler {
	return &ParentHandler{parentStore: ps, logger: logger}
}

type createParentRequest struct {
	ClerkID   string `json:"clerkId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Create handles POST /parents
func (h *ParentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createParentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.ClerkID = strings.TrimSpace(req.ClerkID)
	req.Email = strings.TrimSpace(req.Email)
	if req.ClerkID == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "clerkId and email are required")
		return
	}

	existing, err := h.parentStore.GetByClerkID(req.ClerkID)
	if err != nil {
		h.logger.Error("lookup parent", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create parent")
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "parent": existing})
		return
	}

	parent, err := h.parentStore.Create(req.ClerkID, req.Email, req.FirstName, req.LastName)
	if err != nil {
		h.logger.Error("create parent", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create parent")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "parent": parent})
}

// GetByClerkID handles GET /parents/clerk/{clerkId}
func (h *ParentHandler) GetByClerkID(w http.ResponseWriter, r *http.Request) {
	clerkID := r.PathValue("clerkId")

	parent, err := h.parentStore.GetByClerkID(clerkID)
	if err != nil {
		h.logger.Error("get parent by clerk id", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get parent")
		return
	}
	if parent == nil {
		writeError(w, http.StatusNotFound, "Parent not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "parent": parent})
}
