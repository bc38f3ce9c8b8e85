package repository

import (
	"context"
	"time"

	"familytree-backend/internal/domain"
)

type RequestRepository interface {
	Create(ctx context.Context, req *domain.Request) error
	GetByID(ctx context.Context, kind domain.RequestKind, id string) (*domain.Request, error)
	ListByStatus(ctx context.Context, kind domain.RequestKind, status domain.RequestStatus, limit, offset int32) ([]domain.Request, int32, error)
	ListBySubmitter(ctx context.Context, kind domain.RequestKind, userID string) ([]domain.Request, error)
	ListPendingOlderThan(ctx context.Context, kind domain.RequestKind, before time.Time) ([]domain.Request, error)
	CountByStatus(ctx context.Context, kind domain.RequestKind, status domain.RequestStatus) (int, error)

	// Transition moves a pending request to target. The promotion (may be nil)
	// and the status flip commit together or not at all. Returns
	// domain.ErrInvalidState when the request is no longer pending.
	Transition(ctx context.Context, kind domain.RequestKind, id string, target domain.RequestStatus, at time.Time, promote domain.Promotion) (*domain.Request, error)
}

type NotificationRepository interface {
	// CreateBatch inserts all notifications in one statement.
	CreateBatch(ctx context.Context, notes []*domain.Notification) error
	List(ctx context.Context, userID string, limit, offset int32) ([]domain.Notification, int32, error)
	UnreadCount(ctx context.Context, userID string) (int32, error)
	MarkAsRead(ctx context.Context, id, userID string) error
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) error
	DeleteReadBefore(ctx context.Context, before time.Time) (int64, error)
}

type FamilyMemberRepository interface {
	Create(ctx context.Context, m *domain.FamilyMember) error
	GetByRequestID(ctx context.Context, requestID string) (*domain.FamilyMember, error)
	List(ctx context.Context, limit, offset int32) ([]domain.FamilyMember, error)
}

type MemberRepository interface {
	Create(ctx context.Context, m *domain.Member) error
	GetByRequestID(ctx context.Context, requestID string) (*domain.Member, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)

	// UpdateMetadata merges patch into the stored metadata; other keys survive.
	UpdateMetadata(ctx context.Context, id string, patch map[string]any) error
}
