package domain

import (
	"context"
	"fmt"
)

type RequestKind string

const (
	KindFamilyMember RequestKind = "family_member"
	KindMember       RequestKind = "member"
	KindGallery      RequestKind = "gallery"
	KindNoticeBoard  RequestKind = "notice_board"
	KindEvent        RequestKind = "event"
)

// CanonicalWriter writes the publicly visible records an approval materializes.
// Implementations are bound to the transaction that flips the request status.
type CanonicalWriter interface {
	CreateFamilyMember(ctx context.Context, m *FamilyMember) error
	CreateMember(ctx context.Context, m *Member) error
}

// Promotion materializes an approved request. It runs before the status flip.
type Promotion func(ctx context.Context, w CanonicalWriter, req *Request) error

type KindSpec struct {
	Kind       RequestKind
	Table      string
	Label      string
	NewPayload func() Payload
	Promote    Promotion
}

func (k RequestKind) Spec() (KindSpec, bool) {
	switch k {
	case KindFamilyMember:
		return KindSpec{
			Kind:       k,
			Table:      "family_member_requests",
			Label:      "family member",
			NewPayload: func() Payload { return &FamilyMemberPayload{} },
			Promote:    promoteFamilyMember,
		}, true
	case KindMember:
		return KindSpec{
			Kind:       k,
			Table:      "member_requests",
			Label:      "membership",
			NewPayload: func() Payload { return &MemberPayload{} },
			Promote:    promoteMember,
		}, true
	case KindGallery:
		return KindSpec{
			Kind:       k,
			Table:      "gallery_items",
			Label:      "gallery photo",
			NewPayload: func() Payload { return &GalleryPayload{} },
		}, true
	case KindNoticeBoard:
		return KindSpec{
			Kind:       k,
			Table:      "notice_board_posts",
			Label:      "notice",
			NewPayload: func() Payload { return &NoticePayload{} },
		}, true
	case KindEvent:
		return KindSpec{
			Kind:       k,
			Table:      "events",
			Label:      "event",
			NewPayload: func() Payload { return &EventPayload{} },
		}, true
	}
	return KindSpec{}, false
}

func (k RequestKind) Valid() bool {
	_, ok := k.Spec()
	return ok
}

func (k RequestKind) Table() string {
	spec, _ := k.Spec()
	return spec.Table
}

func (k RequestKind) RequestedType() NotificationType {
	return NotificationType(string(k) + "_request")
}

func (k RequestKind) ApprovedType() NotificationType {
	return NotificationType(string(k) + "_approved")
}

func (k RequestKind) DeclinedType() NotificationType {
	return NotificationType(string(k) + "_declined")
}

// DecisionType maps a terminal status to the notification type sent to the submitter.
func (k RequestKind) DecisionType(status RequestStatus) NotificationType {
	if status == RequestStatusApproved {
		return k.ApprovedType()
	}
	return k.DeclinedType()
}

// AllKinds lists every kind tracked by pending counts.
func AllKinds() []RequestKind {
	return []RequestKind{KindGallery, KindNoticeBoard, KindEvent, KindMember, KindFamilyMember}
}

func ParseKind(s string) (RequestKind, error) {
	k := RequestKind(s)
	if !k.Valid() {
		return "", &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown request kind %q", s)}
	}
	return k, nil
}

func promoteFamilyMember(ctx context.Context, w CanonicalWriter, req *Request) error {
	var p FamilyMemberPayload
	if err := req.DecodePayload(&p); err != nil {
		return fmt.Errorf("decode family member payload: %w", err)
	}
	reqID := req.ID
	return w.CreateFamilyMember(ctx, &FamilyMember{
		Name:      p.Name,
		Gender:    p.Gender,
		BirthDate: p.BirthDate,
		DeathDate: p.DeathDate,
		FatherID:  p.FatherID,
		MotherID:  p.MotherID,
		SpouseID:  p.SpouseID,
		Bio:       p.Bio,
		RequestID: &reqID,
	})
}

func promoteMember(ctx context.Context, w CanonicalWriter, req *Request) error {
	var p MemberPayload
	if err := req.DecodePayload(&p); err != nil {
		return fmt.Errorf("decode member payload: %w", err)
	}
	reqID := req.ID
	return w.CreateMember(ctx, &Member{
		UserID:    req.RequestedBy,
		Name:      p.Name,
		Email:     p.Email,
		Relation:  p.Relation,
		RequestID: &reqID,
	})
}
