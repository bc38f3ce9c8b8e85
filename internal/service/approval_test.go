package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"familytree-backend/internal/domain"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type approvalFixture struct {
	requests *memRequests
	notes    *memNotifications
	ident    *memIdentity
	svc      ApprovalService
}

func newApprovalFixture(t *testing.T, files *fakeStorage) *approvalFixture {
	t.Helper()
	ident := newMemIdentity(
		user("admin-a", map[string]any{domain.MetadataIsAdmin: true}),
		user("admin-b", map[string]any{domain.MetadataIsAdmin: true, "theme": "dark"}),
		user("publisher", map[string]any{domain.MetadataIsPublisher: true}),
		user("submitter", nil),
		user("stringly", map[string]any{domain.MetadataIsAdmin: "true"}),
	)
	requests := newMemRequests()
	notes := &memNotifications{}
	directory := NewDirectoryService(ident, time.Minute, fixedClock)
	notifier := NewNotificationService(notes, directory, nil, 1, fixedClock)
	if files == nil {
		files = &fakeStorage{}
	}
	return &approvalFixture{
		requests: requests,
		notes:    notes,
		ident:    ident,
		svc:      NewApprovalService(requests, directory, notifier, files, fixedClock),
	}
}

func strPtr(s string) *string { return &s }

func TestApprovalService_FamilyMemberLifecycle(t *testing.T) {
	f := newApprovalFixture(t, nil)
	ctx := context.Background()

	payload := json.RawMessage(`{"name":"Jane Doe","gender":"female","birth_date":"1950-04-02"}`)
	req, err := f.svc.Submit(ctx, domain.KindFamilyMember, payload, strPtr("submitter"))
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, req.Status)
	assert.Equal(t, fixedNow, req.CreatedAt)

	t.Run("admins are notified on submit", func(t *testing.T) {
		requested := f.notes.ofType("family_member_request")
		require.Len(t, requested, 2)
		recipients := []string{requested[0].UserID, requested[1].UserID}
		assert.ElementsMatch(t, []string{"admin-a", "admin-b"}, recipients)
		for _, n := range requested {
			assert.Equal(t, "New family member request", n.Title)
			assert.Contains(t, n.Body, "Jane Doe")
			require.NotNil(t, n.ResourceID)
			assert.Equal(t, req.ID, *n.ResourceID)
			assert.False(t, n.Read)
		}
	})

	t.Run("approve promotes and notifies submitter", func(t *testing.T) {
		approved, err := f.svc.Approve(ctx, domain.KindFamilyMember, req.ID, "admin-a")
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusApproved, approved.Status)

		families := f.requests.canonicalFamilies()
		require.Len(t, families, 1)
		assert.Equal(t, "Jane Doe", families[0].Name)
		require.NotNil(t, families[0].RequestID)
		assert.Equal(t, req.ID, *families[0].RequestID)

		decided := f.notes.ofType("family_member_approved")
		require.Len(t, decided, 1)
		assert.Equal(t, "submitter", decided[0].UserID)
	})

	t.Run("second approve is rejected without side effects", func(t *testing.T) {
		_, err := f.svc.Approve(ctx, domain.KindFamilyMember, req.ID, "admin-b")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Len(t, f.requests.canonicalFamilies(), 1)
		assert.Len(t, f.notes.ofType("family_member_approved"), 1)
	})

	t.Run("pending list no longer contains it", func(t *testing.T) {
		pending, total, err := f.svc.ListPending(ctx, domain.KindFamilyMember, 1, 20)
		require.NoError(t, err)
		assert.Empty(t, pending)
		assert.Equal(t, int32(0), total)
	})
}

func TestApprovalService_ConcurrentApprovePromotesOnce(t *testing.T) {
	f := newApprovalFixture(t, nil)
	ctx := context.Background()

	payload := json.RawMessage(`{"name":"Ada Doe","gender":"female"}`)
	req, err := f.svc.Submit(ctx, domain.KindFamilyMember, payload, strPtr("submitter"))
	require.NoError(t, err)

	const approvers = 8
	errs := make([]error, approvers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < approvers; i++ {
		actor := "admin-a"
		if i%2 == 1 {
			actor = "admin-b"
		}
		wg.Add(1)
		go func(i int, actor string) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.Approve(ctx, domain.KindFamilyMember, req.ID, actor)
		}(i, actor)
	}
	close(start)
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, domain.ErrInvalidState):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, approvers-1, lost)

	families := f.requests.canonicalFamilies()
	require.Len(t, families, 1)
	assert.Equal(t, "Ada Doe", families[0].Name)
	assert.Len(t, f.notes.ofType("family_member_approved"), 1)

	got, err := f.svc.GetRequest(ctx, domain.KindFamilyMember, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, got.Status)
}

func TestApprovalService_GalleryReject(t *testing.T) {
	files := &fakeStorage{files: map[string]int64{"gallery/submitter/abc.jpg": 2048}}
	f := newApprovalFixture(t, files)
	ctx := context.Background()
	counter := NewPendingCounter(f.requests)

	payload := json.RawMessage(`{"storage_key":"gallery/submitter/abc.jpg","caption":"Picnic 1987","content_type":"image/jpeg"}`)
	req, err := f.svc.Submit(ctx, domain.KindGallery, payload, strPtr("submitter"))
	require.NoError(t, err)

	var stored domain.GalleryPayload
	require.NoError(t, req.DecodePayload(&stored))
	assert.Equal(t, int64(2048), stored.FileSize)
	assert.Equal(t, "http://files.test/gallery/submitter/abc.jpg", stored.URL)

	before, err := counter.FetchCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, before[domain.KindGallery])

	rejected, err := f.svc.Reject(ctx, domain.KindGallery, req.ID, "publisher")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusRejected, rejected.Status)
	assert.Equal(t, fixedNow, rejected.UpdatedAt)

	declined := f.notes.ofType("gallery_declined")
	require.Len(t, declined, 1)
	assert.Equal(t, "submitter", declined[0].UserID)
	assert.Equal(t, "Your gallery photo request was declined", declined[0].Title)

	after, err := counter.FetchCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, after[domain.KindGallery])
	assert.Empty(t, f.requests.canonicalFamilies())
	assert.Empty(t, f.requests.canonicalMembers())
}

func TestApprovalService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid payload", func(t *testing.T) {
		f := newApprovalFixture(t, nil)
		_, err := f.svc.Submit(ctx, domain.KindFamilyMember, json.RawMessage(`{"gender":"female"}`), nil)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "name", verr.Field)
		assert.Empty(t, f.notes.rows)
	})

	t.Run("unknown field", func(t *testing.T) {
		f := newApprovalFixture(t, nil)
		_, err := f.svc.Submit(ctx, domain.KindNoticeBoard, json.RawMessage(`{"title":"t","body":"b","color":"red"}`), nil)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("unknown kind", func(t *testing.T) {
		f := newApprovalFixture(t, nil)
		_, err := f.svc.Submit(ctx, domain.RequestKind("recipe"), json.RawMessage(`{}`), nil)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("gallery file missing", func(t *testing.T) {
		f := newApprovalFixture(t, &fakeStorage{})
		_, err := f.svc.Submit(ctx, domain.KindGallery, json.RawMessage(`{"storage_key":"gallery/x.png"}`), nil)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "storage_key", verr.Field)
	})

	t.Run("anonymous submission", func(t *testing.T) {
		f := newApprovalFixture(t, nil)
		req, err := f.svc.Submit(ctx, domain.KindMember, json.RawMessage(`{"name":"Sam","email":"sam@example.com"}`), nil)
		require.NoError(t, err)
		assert.Nil(t, req.RequestedBy)

		_, err = f.svc.Approve(ctx, domain.KindMember, req.ID, "admin-b")
		require.NoError(t, err)
		assert.Len(t, f.requests.canonicalMembers(), 1)
		assert.Empty(t, f.notes.ofType("member_approved"))
	})

	t.Run("notification failure does not fail submit", func(t *testing.T) {
		f := newApprovalFixture(t, nil)
		f.notes.failTimes = 5
		req, err := f.svc.Submit(ctx, domain.KindEvent, json.RawMessage(`{"title":"Reunion","starts_at":"2026-07-04T12:00:00Z"}`), strPtr("submitter"))
		require.NoError(t, err)
		got, err := f.svc.GetRequest(ctx, domain.KindEvent, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusPending, got.Status)
	})
}

func TestApprovalService_Transition(t *testing.T) {
	ctx := context.Background()
	submit := func(t *testing.T, f *approvalFixture) *domain.Request {
		t.Helper()
		req, err := f.svc.Submit(ctx, domain.KindFamilyMember, json.RawMessage(`{"name":"John Roe","gender":"male"}`), strPtr("submitter"))
		require.NoError(t, err)
		return req
	}

	t.Run("non-admin is unauthorized", func(t *testing.T) {
		f := newApprovalFixture(t, nil)
		req := submit(t, f)
		for _, actor := range []string{"submitter", "stringly", "nobody", ""} {
			_, err := f.svc.Approve(ctx, domain.KindFamilyMember, req.ID, actor)
			assert.ErrorIs(t, err, domain.ErrUnauthorized, actor)
		}
		got, err := f.svc.GetRequest(ctx, domain.KindFamilyMember, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusPending, got.Status)
		assert.Empty(t, f.requests.canonicalFamilies())
	})

	t.Run("directory outage fails closed", func(t *testing.T) {
		directory := new(MockDirectoryService)
		directory.On("CanModerate", mock.Anything, "admin-a").Return(false, &domain.DirectoryError{Err: errors.New("timeout")}).Once()
		requests := newMemRequests()
		svc := NewApprovalService(requests, directory, new(MockNotificationService), nil, fixedClock)

		_, err := svc.Approve(ctx, domain.KindFamilyMember, "any", "admin-a")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		var derr *domain.DirectoryError
		assert.ErrorAs(t, err, &derr)
		directory.AssertExpectations(t)
	})

	t.Run("promotion failure leaves request pending", func(t *testing.T) {
		f := newApprovalFixture(t, nil)
		req := submit(t, f)
		f.requests.promoteErr = errors.New("fk violation")

		_, err := f.svc.Approve(ctx, domain.KindFamilyMember, req.ID, "admin-a")
		assert.True(t, domain.IsPromotion(err))

		got, err := f.svc.GetRequest(ctx, domain.KindFamilyMember, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusPending, got.Status)
		assert.Empty(t, f.notes.ofType("family_member_approved"))

		f.requests.promoteErr = nil
		_, err = f.svc.Approve(ctx, domain.KindFamilyMember, req.ID, "admin-a")
		assert.NoError(t, err)
	})

	t.Run("unknown request", func(t *testing.T) {
		f := newApprovalFixture(t, nil)
		_, err := f.svc.Reject(ctx, domain.KindFamilyMember, "missing", "admin-a")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("pending is not a target", func(t *testing.T) {
		f := newApprovalFixture(t, nil)
		req := submit(t, f)
		_, err := f.svc.Transition(ctx, domain.KindFamilyMember, req.ID, domain.RequestStatusPending, "admin-a")
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("approve then reject", func(t *testing.T) {
		f := newApprovalFixture(t, nil)
		req := submit(t, f)
		_, err := f.svc.Approve(ctx, domain.KindFamilyMember, req.ID, "admin-a")
		require.NoError(t, err)
		_, err = f.svc.Reject(ctx, domain.KindFamilyMember, req.ID, "admin-a")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Empty(t, f.notes.ofType("family_member_declined"))
	})

	t.Run("submitter notification failure still succeeds", func(t *testing.T) {
		requests := newMemRequests()
		require.NoError(t, requests.Create(ctx, &domain.Request{
			ID:          "r1",
			Kind:        domain.KindNoticeBoard,
			RequestedBy: strPtr("submitter"),
			Payload:     json.RawMessage(`{"title":"Bake sale","body":"Sunday"}`),
		}))
		directory := new(MockDirectoryService)
		directory.On("CanModerate", mock.Anything, "admin-a").Return(true, nil)
		notifier := new(MockNotificationService)
		notifier.On("NotifySubmitter", mock.Anything, domain.NotificationType("notice_board_approved"), mock.MatchedBy(func(r *domain.Request) bool {
			return r.ID == "r1" && r.Status == domain.RequestStatusApproved
		})).Return(&domain.NotificationDeliveryError{Recipients: 1, Err: errors.New("down")}).Once()

		svc := NewApprovalService(requests, directory, notifier, nil, fixedClock)
		got, err := svc.Approve(ctx, domain.KindNoticeBoard, "r1", "admin-a")
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusApproved, got.Status)
		notifier.AssertExpectations(t)
	})
}

func TestApprovalService_ListMine(t *testing.T) {
	f := newApprovalFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Submit(ctx, domain.KindNoticeBoard, json.RawMessage(`{"title":"a","body":"b"}`), strPtr("submitter"))
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, domain.KindNoticeBoard, json.RawMessage(`{"title":"c","body":"d"}`), strPtr("admin-a"))
	require.NoError(t, err)

	mine, err := f.svc.ListMine(ctx, domain.KindNoticeBoard, "submitter")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "submitter", *mine[0].RequestedBy)
}

func TestPageBounds(t *testing.T) {
	cases := []struct {
		page, size    int32
		limit, offset int32
	}{
		{0, 0, 20, 0},
		{1, 10, 10, 0},
		{3, 10, 10, 20},
		{2, 500, 100, 100},
		{-4, -1, 20, 0},
	}
	for _, c := range cases {
		limit, offset := pageBounds(c.page, c.size)
		assert.Equal(t, c.limit, limit)
		assert.Equal(t, c.offset, offset)
	}
}
