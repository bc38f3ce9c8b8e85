package service

import (
	"context"
	"fmt"
	"time"

	"github.com/flowchartsman/retry"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/logger"
	"familytree-backend/internal/realtime"
	"familytree-backend/internal/repository"
)

type notificationService struct {
	notes     repository.NotificationRepository
	directory DirectoryService
	hub       *realtime.Hub
	retrier   *retry.Retrier
	now       Clock
}

func NewNotificationService(
	notes repository.NotificationRepository,
	directory DirectoryService,
	hub *realtime.Hub,
	attempts int,
	clock Clock,
) NotificationService {
	if attempts < 1 {
		attempts = 1
	}
	if clock == nil {
		clock = systemClock
	}
	return &notificationService{
		notes:     notes,
		directory: directory,
		hub:       hub,
		retrier:   retry.NewRetrier(attempts, 100*time.Millisecond, time.Second),
		now:       clock,
	}
}

// NotifyAdmins sends one notification per admin. An unresolvable or empty
// admin set is logged and treated as zero recipients.
func (s *notificationService) NotifyAdmins(ctx context.Context, event domain.NotificationType, req *domain.Request) error {
	adminIDs, err := s.directory.ListAdminIDs(ctx)
	if err != nil {
		logger.Error("Admin directory unavailable, skipping fan-out", "type", event, "requestID", req.ID, "error", err)
		return nil
	}
	if len(adminIDs) == 0 {
		logger.Warn("No admins to notify", "type", event, "requestID", req.ID)
		return nil
	}
	title, body := composeMessage(event, req)
	return s.fanOut(ctx, adminIDs, event, title, body, &req.ID)
}

// NotifySubmitter is a no-op for anonymous submissions.
func (s *notificationService) NotifySubmitter(ctx context.Context, event domain.NotificationType, req *domain.Request) error {
	if req.RequestedBy == nil || *req.RequestedBy == "" {
		logger.Debug("Request has no submitter, skipping notification", "type", event, "requestID", req.ID)
		return nil
	}
	title, body := composeMessage(event, req)
	return s.fanOut(ctx, []string{*req.RequestedBy}, event, title, body, &req.ID)
}

func (s *notificationService) NotifyUsers(ctx context.Context, userIDs []string, typ domain.NotificationType, title, body string, resourceID *string) error {
	if len(userIDs) == 0 {
		return nil
	}
	return s.fanOut(ctx, userIDs, typ, title, body, resourceID)
}

// fanOut writes every recipient's record in one batch, retrying the whole batch.
func (s *notificationService) fanOut(ctx context.Context, recipients []string, typ domain.NotificationType, title, body string, resourceID *string) error {
	logger.EnterMethod("notificationService.fanOut", "type", typ, "recipients", len(recipients))

	now := s.now()
	seen := make(map[string]struct{}, len(recipients))
	notes := make([]*domain.Notification, 0, len(recipients))
	for _, id := range recipients {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		notes = append(notes, &domain.Notification{
			UserID:     id,
			Title:      title,
			Body:       body,
			Type:       typ,
			ResourceID: resourceID,
			CreatedAt:  now,
		})
	}

	if err := ctx.Err(); err != nil {
		return &domain.NotificationDeliveryError{Type: typ, Recipients: len(notes), Err: err}
	}

	attempt := 0
	err := s.retrier.Run(func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.notes.CreateBatch(ctx, notes)
		if err != nil {
			logger.Warn("Notification batch insert failed", "type", typ, "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		derr := &domain.NotificationDeliveryError{Type: typ, Recipients: len(notes), Err: err}
		logger.ExitMethodWithError("notificationService.fanOut", derr)
		return derr
	}

	logger.ExitMethod("notificationService.fanOut", "type", typ, "recipients", len(notes))
	return nil
}

func composeMessage(event domain.NotificationType, req *domain.Request) (string, string) {
	label := string(req.Kind)
	if spec, ok := req.Kind.Spec(); ok {
		label = spec.Label
	}
	summary := req.Summary()

	switch event {
	case req.Kind.RequestedType():
		return fmt.Sprintf("New %s request", label), fmt.Sprintf("%q is waiting for review.", summary)
	case req.Kind.ApprovedType():
		return fmt.Sprintf("Your %s request was approved", label), fmt.Sprintf("%q has been approved.", summary)
	case req.Kind.DeclinedType():
		return fmt.Sprintf("Your %s request was declined", label), fmt.Sprintf("%q was not approved.", summary)
	}
	return string(event), summary
}

func (s *notificationService) GetNotifications(ctx context.Context, userID string, page, pageSize int32) ([]domain.Notification, int32, error) {
	limit, offset := pageBounds(page, pageSize)
	return s.notes.List(ctx, userID, limit, offset)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int32, error) {
	return s.notes.UnreadCount(ctx, userID)
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, notificationID string) error {
	return s.notes.MarkAsRead(ctx, notificationID, userID)
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.notes.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	logger.Debug("Marked notifications read", "userID", userID, "count", n)
	return n, nil
}

func (s *notificationService) Delete(ctx context.Context, userID, notificationID string) error {
	return s.notes.Delete(ctx, notificationID, userID)
}

func (s *notificationService) Subscribe(userID string) *realtime.Subscription {
	return s.hub.Subscribe(userID)
}
