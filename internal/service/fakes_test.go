package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/realtime"
)

// memRequests is an in-memory RequestRepository with the same
// compare-and-set transition semantics as the postgres store.
type memRequests struct {
	mu       sync.Mutex
	rows     map[string]*domain.Request
	families []domain.FamilyMember
	members  []domain.Member
	countErr map[domain.RequestKind]error

	// promoteErr makes the canonical write fail inside Transition.
	promoteErr error
}

func newMemRequests() *memRequests {
	return &memRequests{rows: map[string]*domain.Request{}, countErr: map[domain.RequestKind]error{}}
}

func (m *memRequests) Create(ctx context.Context, req *domain.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = domain.RequestStatusPending
	req.UpdatedAt = req.CreatedAt
	cp := *req
	m.rows[req.ID] = &cp
	return nil
}

func (m *memRequests) GetByID(ctx context.Context, kind domain.RequestKind, id string) (*domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Kind != kind {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRequests) filter(kind domain.RequestKind, keep func(*domain.Request) bool) []domain.Request {
	var out []domain.Request
	for _, r := range m.rows {
		if r.Kind == kind && keep(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memRequests) ListByStatus(ctx context.Context, kind domain.RequestKind, status domain.RequestStatus, limit, offset int32) ([]domain.Request, int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.filter(kind, func(r *domain.Request) bool { return r.Status == status })
	total := int32(len(all))
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memRequests) ListBySubmitter(ctx context.Context, kind domain.RequestKind, userID string) ([]domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(kind, func(r *domain.Request) bool { return r.RequestedBy != nil && *r.RequestedBy == userID }), nil
}

func (m *memRequests) ListPendingOlderThan(ctx context.Context, kind domain.RequestKind, before time.Time) ([]domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(kind, func(r *domain.Request) bool {
		return r.Status == domain.RequestStatusPending && r.CreatedAt.Before(before)
	}), nil
}

func (m *memRequests) CountByStatus(ctx context.Context, kind domain.RequestKind, status domain.RequestStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.countErr[kind]; err != nil {
		return 0, err
	}
	return len(m.filter(kind, func(r *domain.Request) bool { return r.Status == status })), nil
}

func (m *memRequests) Transition(ctx context.Context, kind domain.RequestKind, id string, target domain.RequestStatus, at time.Time, promote domain.Promotion) (*domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Kind != kind {
		return nil, domain.ErrNotFound
	}
	if !domain.CanTransition(r.Status, target) {
		return nil, domain.ErrInvalidState
	}
	if promote != nil {
		w := &memWriter{fail: m.promoteErr}
		if err := promote(ctx, w, r); err != nil {
			return nil, &domain.PromotionError{Kind: kind, RequestID: id, Err: err}
		}
		m.families = append(m.families, w.families...)
		m.members = append(m.members, w.members...)
	}
	r.Status = target
	r.UpdatedAt = at
	cp := *r
	return &cp, nil
}

func (m *memRequests) canonicalFamilies() []domain.FamilyMember {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.FamilyMember(nil), m.families...)
}

func (m *memRequests) canonicalMembers() []domain.Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Member(nil), m.members...)
}

// memWriter buffers canonical writes so a failed promotion leaves nothing behind.
type memWriter struct {
	families []domain.FamilyMember
	members  []domain.Member
	fail     error
}

func (w *memWriter) CreateFamilyMember(ctx context.Context, f *domain.FamilyMember) error {
	if w.fail != nil {
		return w.fail
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	w.families = append(w.families, *f)
	return nil
}

func (w *memWriter) CreateMember(ctx context.Context, mb *domain.Member) error {
	if w.fail != nil {
		return w.fail
	}
	if mb.ID == "" {
		mb.ID = uuid.NewString()
	}
	w.members = append(w.members, *mb)
	return nil
}

type memNotifications struct {
	mu        sync.Mutex
	rows      []domain.Notification
	failTimes int
	batches   int
}

func (m *memNotifications) CreateBatch(ctx context.Context, notes []*domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	if m.failTimes > 0 {
		m.failTimes--
		return errors.New("connection reset by peer")
	}
	for _, n := range notes {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		m.rows = append(m.rows, *n)
	}
	return nil
}

func (m *memNotifications) forUser(userID string) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (m *memNotifications) ofType(typ domain.NotificationType) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.rows {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func (m *memNotifications) List(ctx context.Context, userID string, limit, offset int32) ([]domain.Notification, int32, error) {
	all := m.forUser(userID)
	return all, int32(len(all)), nil
}

func (m *memNotifications) UnreadCount(ctx context.Context, userID string) (int32, error) {
	var n int32
	for _, note := range m.forUser(userID) {
		if !note.Read {
			n++
		}
	}
	return n, nil
}

func (m *memNotifications) MarkAsRead(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].UserID == userID {
			m.rows[i].Read = true
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
}

func (m *memNotifications) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.rows {
		if m.rows[i].UserID == userID && !m.rows[i].Read {
			m.rows[i].Read = true
			n++
		}
	}
	return n, nil
}

func (m *memNotifications) Delete(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].UserID == userID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
}

func (m *memNotifications) DeleteReadBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// memIdentity is an identity.Provider over a map.
type memIdentity struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	listCalls int
	listErr   error
}

func newMemIdentity(users ...domain.User) *memIdentity {
	m := &memIdentity{users: map[string]*domain.User{}}
	for i := range users {
		u := users[i]
		m.users[u.ID] = &u
	}
	return m
}

func (m *memIdentity) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memIdentity) ListUsers(ctx context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.users[id])
	}
	return out, nil
}

func (m *memIdentity) UpdateUserMetadata(ctx context.Context, id string, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	if u.Metadata == nil {
		u.Metadata = map[string]any{}
	}
	for k, v := range patch {
		u.Metadata[k] = v
	}
	return nil
}

func user(id string, meta map[string]any) domain.User {
	return domain.User{ID: id, Email: id + "@example.com", DisplayName: id, Metadata: meta}
}

// MockNotificationService
type MockNotificationService struct {
	mock.Mock
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
func (m *MockNotificationService) Subscribe(userID string) *realtime.Subscription {
	args := m.Called(userID)
	return args.Get(0).(*realtime.Subscription)
}

// fakeStorage answers FileExists from a fixed set of keys.
type fakeStorage struct {
	files map[string]int64
}

func (f *fakeStorage) GeneratePresignedUploadURL(ctx context.Context, key, contentType string, expiresIn time.Duration) (string, error) {
	return "http://files.test/upload/" + key, nil
}
func (f *fakeStorage) GeneratePresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	return "http://files.test/" + key, nil
}
func (f *fakeStorage) FileExists(ctx context.Context, key string) (bool, int64, error) {
	size, ok := f.files[key]
	return ok, size, nil
}
func (f *fakeStorage) DeleteFile(ctx context.Context, key string) error { return nil }
func (f *fakeStorage) SaveFile(key string, reader io.Reader) error   { return nil }
func (f *fakeStorage) ReadFile(key string) (io.ReadCloser, error)    { return nil, errors.New("not implemented") }

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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
func (m *MockDirectoryService) ListAdmins(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}
func (m *MockDirectoryService) SetRole(ctx context.Context, userID string, update domain.RoleUpdate) error {
	args := m.Called(ctx, userID, update)
	return args.Error(0)
}
