package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/logger"
	"familytree-backend/internal/repository"
	"familytree-backend/internal/storage"
)

const galleryURLExpiry = 7 * 24 * time.Hour

type approvalService struct {
	requests  repository.RequestRepository
	directory DirectoryService
	notifier  NotificationService
	files     storage.StorageInterface
	now       Clock
}

func NewApprovalService(
	requests repository.RequestRepository,
	directory DirectoryService,
	notifier NotificationService,
	files storage.StorageInterface,
	clock Clock,
) ApprovalService {
	if clock == nil {
		clock = systemClock
	}
	return &approvalService{
		requests:  requests,
		directory: directory,
		notifier:  notifier,
		files:     files,
		now:       clock,
	}
}

func (s *approvalService) Submit(ctx context.Context, kind domain.RequestKind, payload json.RawMessage, submitterID *string) (*domain.Request, error) {
	logger.EnterMethod("approvalService.Submit", "kind", kind)

	p, err := decodePayload(kind, payload)
	if err != nil {
		logger.ExitMethodWithError("approvalService.Submit", err, "kind", kind)
		return nil, err
	}

	if gp, ok := p.(*domain.GalleryPayload); ok {
		if err := s.resolveGalleryFile(ctx, gp); err != nil {
			logger.ExitMethodWithError("approvalService.Submit", err, "kind", kind)
			return nil, err
		}
	}

	normalized, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req := &domain.Request{
		Kind:        kind,
		Status:      domain.RequestStatusPending,
		RequestedBy: submitterID,
		Payload:     normalized,
		CreatedAt:   s.now(),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		logger.ExitMethodWithError("approvalService.Submit", err, "kind", kind)
		return nil, fmt.Errorf("create %s request: %w", kind, err)
	}

	if err := s.notifier.NotifyAdmins(ctx, kind.RequestedType(), req); err != nil {
		logger.Error("Admin notification failed after submission", "kind", kind, "requestID", req.ID, "error", err)
	}

	logger.ExitMethod("approvalService.Submit", "kind", kind, "requestID", req.ID)
	return req, nil
}

// resolveGalleryFile checks the uploaded file exists and records its size and URL.
func (s *approvalService) resolveGalleryFile(ctx context.Context, p *domain.GalleryPayload) error {
	if s.files == nil {
		return &domain.ValidationError{Field: "storage_key", Reason: "file storage is not configured"}
	}
	exists, size, err := s.files.FileExists(ctx, p.StorageKey)
	if errors.Is(err, storage.ErrInvalidKey) {
		return &domain.ValidationError{Field: "storage_key", Reason: "invalid key"}
	}
	if err != nil {
		return fmt.Errorf("check gallery file: %w", err)
	}
	if !exists {
		return &domain.ValidationError{Field: "storage_key", Reason: "file has not been uploaded"}
	}
	url, err := s.files.GeneratePresignedDownloadURL(ctx, p.StorageKey, galleryURLExpiry)
	if err != nil {
		return fmt.Errorf("resolve gallery url: %w", err)
	}
	p.URL = url
	p.FileSize = size
	return nil
}

func (s *approvalService) Transition(ctx context.Context, kind domain.RequestKind, id string, target domain.RequestStatus, actorID string) (*domain.Request, error) {
	logger.EnterMethod("approvalService.Transition", "kind", kind, "requestID", id, "target", target, "actorID", actorID)

	spec, ok := kind.Spec()
	if !ok {
		return nil, &domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown request kind %q", kind)}
	}
	if !target.IsTerminal() {
		return nil, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("target must be approved or rejected, got %q", target)}
	}

	allowed, err := s.directory.CanModerate(ctx, actorID)
	if err != nil {
		// fail closed when roles cannot be resolved
		logger.ExitMethodWithError("approvalService.Transition", err, "actorID", actorID)
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	if !allowed {
		logger.Warn("Transition denied", "kind", kind, "requestID", id, "actorID", actorID)
		return nil, domain.ErrUnauthorized
	}

	var promote domain.Promotion
	if target == domain.RequestStatusApproved {
		promote = spec.Promote
	}

	req, err := s.requests.Transition(ctx, kind, id, target, s.now(), promote)
	if err != nil {
		logger.ExitMethodWithError("approvalService.Transition", err, "kind", kind, "requestID", id)
		return nil, err
	}

	if err := s.notifier.NotifySubmitter(ctx, kind.DecisionType(target), req); err != nil {
		logger.Error("Submitter notification failed after transition", "kind", kind, "requestID", id, "error", err)
	}

	logger.ExitMethod("approvalService.Transition", "kind", kind, "requestID", id, "status", req.Status)
	return req, nil
}

func (s *approvalService) Approve(ctx context.Context, kind domain.RequestKind, id, actorID string) (*domain.Request, error) {
	return s.Transition(ctx, kind, id, domain.RequestStatusApproved, actorID)
}

func (s *approvalService) Reject(ctx context.Context, kind domain.RequestKind, id, actorID string) (*domain.Request, error) {
	return s.Transition(ctx, kind, id, domain.RequestStatusRejected, actorID)
}

func (s *approvalService) ListPending(ctx context.Context, kind domain.RequestKind, page, pageSize int32) ([]domain.Request, int32, error) {
	return s.ListByStatus(ctx, kind, domain.RequestStatusPending, page, pageSize)
}

func (s *approvalService) ListByStatus(ctx context.Context, kind domain.RequestKind, status domain.RequestStatus, page, pageSize int32) ([]domain.Request, int32, error) {
	if !kind.Valid() {
		return nil, 0, &domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown request kind %q", kind)}
	}
	if !status.Valid() {
		return nil, 0, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	limit, offset := pageBounds(page, pageSize)
	return s.requests.ListByStatus(ctx, kind, status, limit, offset)
}

func (s *approvalService) GetRequest(ctx context.Context, kind domain.RequestKind, id string) (*domain.Request, error) {
	return s.requests.GetByID(ctx, kind, id)
}

func (s *approvalService) ListMine(ctx context.Context, kind domain.RequestKind, userID string) ([]domain.Request, error) {
	return s.requests.ListBySubmitter(ctx, kind, userID)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pageBounds turns a 1-based page into limit/offset.
func pageBounds(page, pageSize int32) (int32, int32) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pageSize, (page - 1) * pageSize
}
