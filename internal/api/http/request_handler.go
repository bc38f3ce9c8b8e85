package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/logger"
	"familytree-backend/internal/service"
)

const maxPayloadBytes = 1 << 20

var decoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

type listQuery struct {
	Status   string `schema:"status"`
	Page     int32  `schema:"page"`
	PageSize int32  `schema:"page_size"`
}

func decodeQuery(r *http.Request, dst any) error {
	if err := decoder.Decode(dst, r.URL.Query()); err != nil {
		return &domain.ValidationError{Field: "query", Reason: err.Error()}
	}
	return nil
}

type listResponse[T any] struct {
	Items []T   `json:"items"`
	Total int32 `json:"total"`
}

type RequestHandler struct {
	approvals service.ApprovalService
	directory service.DirectoryService
	pending   service.PendingCounter
	family    service.FamilyService
}

func NewRequestHandler(approvals service.ApprovalService, directory service.DirectoryService, pending service.PendingCounter, family service.FamilyService) *RequestHandler {
	return &RequestHandler{approvals: approvals, directory: directory, pending: pending, family: family}
}

func kindFrom(r *http.Request) (domain.RequestKind, error) {
	return domain.ParseKind(mux.Vars(r)["kind"])
}

// requireModerator writes 403 and returns false unless the caller is an admin or publisher.
func (h *RequestHandler) requireModerator(w http.ResponseWriter, r *http.Request) bool {
	ok, err := h.directory.CanModerate(r.Context(), userIDFromContext(r.Context()))
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

// Submit accepts anonymous submissions; an authenticated caller becomes the submitter.
func (h *RequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		writeError(w, r, &domain.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	if len(body) > maxPayloadBytes {
		writeError(w, r, &domain.ValidationError{Field: "body", Reason: "payload too large"})
		return
	}

	var submitter *string
	if id := userIDFromContext(r.Context()); id != "" {
		submitter = &id
	}

	req, err := h.approvals.Submit(r.Context(), kind, json.RawMessage(body), submitter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !h.requireModerator(w, r) {
		return
	}
	var q listQuery
	if err := decodeQuery(r, &q); err != nil {
		writeError(w, r, err)
		return
	}
	status := domain.RequestStatusPending
	if q.Status != "" {
		status = domain.RequestStatus(q.Status)
	}

	reqs, total, err := h.approvals.ListByStatus(r.Context(), kind, status, q.Page, q.PageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []domain.Request{}
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Request]{Items: reqs, Total: total})
}

func (h *RequestHandler) Mine(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	reqs, err := h.approvals.ListMine(r.Context(), kind, userIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []domain.Request{}
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Request]{Items: reqs, Total: int32(len(reqs))})
}

// visibleRequest loads the path's request for its own submitter or a moderator.
func (h *RequestHandler) visibleRequest(w http.ResponseWriter, r *http.Request) (*domain.Request, bool) {
	kind, err := kindFrom(r)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	req, err := h.approvals.GetRequest(r.Context(), kind, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	caller := userIDFromContext(r.Context())
	if req.RequestedBy == nil || *req.RequestedBy != caller {
		if !h.requireModerator(w, r) {
			return nil, false
		}
	}
	return req, true
}

func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, ok := h.visibleRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Record returns the family tree or member entry an approval published.
func (h *RequestHandler) Record(w http.ResponseWriter, r *http.Request) {
	req, ok := h.visibleRequest(w, r)
	if !ok {
		return
	}
	if req.Status != domain.RequestStatusApproved {
		writeMessage(w, http.StatusNotFound, "request has not been approved")
		return
	}
	rec, err := h.family.PublishedRecord(r.Context(), req.Kind, req.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *RequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.RequestStatusApproved)
}

func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.RequestStatusRejected)
}

func (h *RequestHandler) transition(w http.ResponseWriter, r *http.Request, target domain.RequestStatus) {
	kind, err := kindFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := h.approvals.Transition(r.Context(), kind, mux.Vars(r)["id"], target, userIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type pendingCountsResponse struct {
	Counts     map[domain.RequestKind]int `json:"counts"`
	Incomplete bool                       `json:"incomplete,omitempty"`
}

// PendingCounts returns whatever kinds could be counted; a partial result is flagged.
func (h *RequestHandler) PendingCounts(w http.ResponseWriter, r *http.Request) {
	if !h.requireModerator(w, r) {
		return
	}
	counts, err := h.pending.FetchCounts(r.Context())
	resp := pendingCountsResponse{Counts: counts}
	if err != nil {
		logger.Warn("Pending counts incomplete", "error", err)
		resp.Incomplete = true
		if len(counts) == 0 {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
