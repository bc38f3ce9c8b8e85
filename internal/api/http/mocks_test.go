package http

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/realtime"
	"familytree-backend/internal/service"
)

// MockApprovalService
type MockApprovalService struct {
	mock.Mock
}

func (m *MockApprovalService) Submit(ctx context.Context, kind domain.RequestKind, payload json.RawMessage, submitterID *string) (*domain.Request, error) {
	args := m.Called(ctx, kind, payload, submitterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Request), args.Error(1)
}
func (m *MockApprovalService) Transition(ctx context.Context, kind domain.RequestKind, id string, target domain.RequestStatus, actorID string) (*domain.Request, error) {
	args := m.Called(ctx, kind, id, target, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Request), args.Error(1)
}
func (m *MockApprovalService) Approve(ctx context.Context, kind domain.RequestKind, id, actorID string) (*domain.Request, error) {
	return m.Transition(ctx, kind, id, domain.RequestStatusApproved, actorID)
}
func (m *MockApprovalService) Reject(ctx context.Context, kind domain.RequestKind, id, actorID string) (*domain.Request, error) {
	return m.Transition(ctx, kind, id, domain.RequestStatusRejected, actorID)
}
func (m *MockApprovalService) ListPending(ctx context.Context, kind domain.RequestKind, page, pageSize int32) ([]domain.Request, int32, error) {
	return m.ListByStatus(ctx, kind, domain.RequestStatusPending, page, pageSize)
}
func (m *MockApprovalService) ListByStatus(ctx context.Context, kind domain.RequestKind, status domain.RequestStatus, page, pageSize int32) ([]domain.Request, int32, error) {
	args := m.Called(ctx, kind, status, page, pageSize)
	return args.Get(0).([]domain.Request), args.Get(1).(int32), args.Error(2)
}
func (m *MockApprovalService) GetRequest(ctx context.Context, kind domain.RequestKind, id string) (*domain.Request, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Request), args.Error(1)
}
func (m *MockApprovalService) ListMine(ctx context.Context, kind domain.RequestKind, userID string) ([]domain.Request, error) {
	args := m.Called(ctx, kind, userID)
	return args.Get(0).([]domain.Request), args.Error(1)
}

// MockNotificationService
type MockNotificationService struct {
	mock.Mock
	hub *realtime.Hub
}

func (m *MockNotificationService) NotifyAdmins(ctx context.Context, event domain.NotificationType, req *domain.Request) error {
	args := m.Called(ctx, event, req)
	return args.Error(0)
}
func (m *MockNotificationService) NotifySubmitter(ctx context.Context, event domain.NotificationType, req *domain.Request) error {
	args := m.Called(ctx, event, req)
	return args.Error(0)
}
func (m *MockNotificationService) NotifyUsers(ctx context.Context, userIDs []string, typ domain.NotificationType, title, body string, resourceID *string) error {
	args := m.Called(ctx, userIDs, typ, title, body, resourceID)
	return args.Error(0)
}
func (m *MockNotificationService) GetNotifications(ctx context.Context, userID string, page, pageSize int32) ([]domain.Notification, int32, error) {
	args := m.Called(ctx, userID, page, pageSize)
	return args.Get(0).([]domain.Notification), args.Get(1).(int32), args.Error(2)
}
func (m *MockNotificationService) UnreadCount(ctx context.Context, userID string) (int32, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int32), args.Error(1)
}
func (m *MockNotificationService) MarkAsRead(ctx context.Context, userID, notificationID string) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}
func (m *MockNotificationService) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockNotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

// Subscribe goes to a real hub so websocket tests can push rows through it.
func (m *MockNotificationService) Subscribe(userID string) *realtime.Subscription {
	return m.hub.Subscribe(userID)
}

// MockDirectoryService
type MockDirectoryService struct {
	mock.Mock
}

func (m *MockDirectoryService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}
func (m *MockDirectoryService) IsPublisher(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}
func (m *MockDirectoryService) CanModerate(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}
func (m *MockDirectoryService) ListAdminIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}
func (m *MockDirectoryService) ListAdmins(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.User), args.Error(1)
}
func (m *MockDirectoryService) SetRole(ctx context.Context, userID string, update domain.RoleUpdate) error {
	args := m.Called(ctx, userID, update)
	return args.Error(0)
}

// MockAuthService
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*service.AuthTokens, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthTokens), args.Error(1)
}
func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*service.AuthTokens, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthTokens), args.Error(1)
}
func (m *MockAuthService) FirebaseLogin(ctx context.Context, idToken string) (*service.AuthTokens, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthTokens), args.Error(1)
}

// MockGalleryService
type MockGalleryService struct {
	mock.Mock
}

func (m *MockGalleryService) GetUploadURL(ctx context.Context, userID, filename, contentType string) (*service.UploadTicket, error) {
	args := m.Called(ctx, userID, filename, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadTicket), args.Error(1)
}

// MockPendingCounter
type MockPendingCounter struct {
	mock.Mock
}

func (m *MockPendingCounter) FetchCounts(ctx context.Context) (map[domain.RequestKind]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.RequestKind]int), args.Error(1)
}

// MockFamilyService
type MockFamilyService struct {
	mock.Mock
}

func (m *MockFamilyService) ListFamilyMembers(ctx context.Context, page, pageSize int32) ([]domain.FamilyMember, error) {
	args := m.Called(ctx, page, pageSize)
	return args.Get(0).([]domain.FamilyMember), args.Error(1)
}
func (m *MockFamilyService) PublishedRecord(ctx context.Context, kind domain.RequestKind, requestID string) (any, error) {
	args := m.Called(ctx, kind, requestID)
	return args.Get(0), args.Error(1)
}
