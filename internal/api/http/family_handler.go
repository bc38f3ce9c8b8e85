package http

import (
	"net/http"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/service"
)

// FamilyHandler lists the published family tree entries.
type FamilyHandler struct {
	family service.FamilyService
}

func NewFamilyHandler(family service.FamilyService) *FamilyHandler {
	return &FamilyHandler{family: family}
}

func (h *FamilyHandler) List(w http.ResponseWriter, r *http.Request) {
	var q pageQuery
	if err := decodeQuery(r, &q); err != nil {
		writeError(w, r, err)
		return
	}
	members, err := h.family.ListFamilyMembers(r.Context(), q.Page, q.PageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if members == nil {
		members = []domain.FamilyMember{}
	}
	writeJSON(w, http.StatusOK, listResponse[domain.FamilyMember]{Items: members, Total: int32(len(members))})
}
