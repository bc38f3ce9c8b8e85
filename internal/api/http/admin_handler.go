package http

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/service"
)

type AdminHandler struct {
	directory service.DirectoryService
}

func NewAdminHandler(directory service.DirectoryService) *AdminHandler {
	return &AdminHandler{directory: directory}
}

type rolesResponse struct {
	UserID      string `json:"user_id"`
	IsAdmin     bool   `json:"is_admin"`
	IsPublisher bool   `json:"is_publisher"`
}

func (h *AdminHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	ok, err := h.directory.IsAdmin(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, errors.Join(domain.ErrUnauthorized, err))
		return false
	}
	if !ok {
		writeError(w, r, domain.ErrUnauthorized)
		return false
	}
	return true
}

// IsAdmin reports the role flags of a user. Callers may query themselves; others need admin.
func (h *AdminHandler) IsAdmin(w http.ResponseWriter, r *http.Request) {
	target := mux.Vars(r)["id"]
	if target != userIDFromContext(r.Context()) && !h.requireAdmin(w, r) {
		return
	}
	h.writeRoles(w, r, target)
}

func (h *AdminHandler) SetRoles(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var update domain.RoleUpdate
	if err := decodeBody(r, &update); err != nil {
		writeError(w, r, err)
		return
	}
	target := mux.Vars(r)["id"]
	if err := h.directory.SetRole(r.Context(), target, update); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeRoles(w, r, target)
}

func (h *AdminHandler) writeRoles(w http.ResponseWriter, r *http.Request, userID string) {
	admin, err := h.directory.IsAdmin(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	publisher, err := h.directory.IsPublisher(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rolesResponse{UserID: userID, IsAdmin: admin, IsPublisher: publisher})
}
