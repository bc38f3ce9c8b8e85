package service

import (
	"context"
	"encoding/json"
	"time"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/realtime"
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

type ApprovalService interface {
	Submit(ctx context.Context, kind domain.RequestKind, payload json.RawMessage, submitterID *string) (*domain.Request, error)
	Transition(ctx context.Context, kind domain.RequestKind, id string, target domain.RequestStatus, actorID string) (*domain.Request, error)
	Approve(ctx context.Context, kind domain.RequestKind, id, actorID string) (*domain.Request, error)
	Reject(ctx context.Context, kind domain.RequestKind, id, actorID string) (*domain.Request, error)
	ListPending(ctx context.Context, kind domain.RequestKind, page, pageSize int32) ([]domain.Request, int32, error)
	ListByStatus(ctx context.Context, kind domain.RequestKind, status domain.RequestStatus, page, pageSize int32) ([]domain.Request, int32, error)
	GetRequest(ctx context.Context, kind domain.RequestKind, id string) (*domain.Request, error)
	ListMine(ctx context.Context, kind domain.RequestKind, userID string) ([]domain.Request, error)
}

type NotificationService interface {
	NotifyAdmins(ctx context.Context, event domain.NotificationType, req *domain.Request) error
	NotifySubmitter(ctx context.Context, event domain.NotificationType, req *domain.Request) error
	NotifyUsers(ctx context.Context, userIDs []string, typ domain.NotificationType, title, body string, resourceID *string) error

	GetNotifications(ctx context.Context, userID string, page, pageSize int32) ([]domain.Notification, int32, error)
	UnreadCount(ctx context.Context, userID string) (int32, error)
	MarkAsRead(ctx context.Context, userID, notificationID string) error
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, notificationID string) error
	Subscribe(userID string) *realtime.Subscription
}

type DirectoryService interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
	IsPublisher(ctx context.Context, userID string) (bool, error)
	CanModerate(ctx context.Context, userID string) (bool, error)
	ListAdminIDs(ctx context.Context) ([]string, error)
	ListAdmins(ctx context.Context) ([]domain.User, error)
	SetRole(ctx context.Context, userID string, update domain.RoleUpdate) error
}

type FamilyService interface {
	ListFamilyMembers(ctx context.Context, page, pageSize int32) ([]domain.FamilyMember, error)
	PublishedRecord(ctx context.Context, kind domain.RequestKind, requestID string) (any, error)
}

type PendingCounter interface {
	FetchCounts(ctx context.Context) (map[domain.RequestKind]int, error)
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*AuthTokens, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthTokens, error)
	FirebaseLogin(ctx context.Context, idToken string) (*AuthTokens, error)
}

type GalleryService interface {
	GetUploadURL(ctx context.Context, userID, filename, contentType string) (*UploadTicket, error)
}

type EmailService interface {
	SendAdminDigest(ctx context.Context, to, name, subject, body string) error
}
