package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected:
		return true
	}
	return false
}

func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// CanTransition reports whether from -> to is a legal lifecycle step.
// Only pending requests move, and only to a terminal state.
func CanTransition(from, to RequestStatus) bool {
	return from == RequestStatusPending && to.IsTerminal()
}

// Request is any user submission that waits for an admin decision.
type Request struct {
	ID          string          `json:"id"`
	Kind        RequestKind     `json:"kind"`
	Status      RequestStatus   `json:"status"`
	RequestedBy *string         `json:"requested_by,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (r *Request) DecodePayload(dst any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("request %s has no payload", r.ID)
	}
	return json.Unmarshal(r.Payload, dst)
}

// Summary returns a short human label for the request, used in notification copy.
func (r *Request) Summary() string {
	spec, ok := r.Kind.Spec()
	if !ok {
		return r.ID
	}
	p := spec.NewPayload()
	if err := r.DecodePayload(p); err != nil {
		return r.ID
	}
	if s := p.Summary(); s != "" {
		return s
	}
	return r.ID
}
