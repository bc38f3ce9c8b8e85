package service

import (
	"context"
	"fmt"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/logger"
	"familytree-backend/internal/repository"
)

type familyService struct {
	families repository.FamilyMemberRepository
	members  repository.MemberRepository
}

func NewFamilyService(families repository.FamilyMemberRepository, members repository.MemberRepository) FamilyService {
	return &familyService{families: families, members: members}
}

func (s *familyService) ListFamilyMembers(ctx context.Context, page, pageSize int32) ([]domain.FamilyMember, error) {
	limit, offset := pageBounds(page, pageSize)
	logger.DatabaseCall("List", "family_members", "limit", limit, "offset", offset)
	members, err := s.families.List(ctx, limit, offset)
	logger.DatabaseResult("List", int64(len(members)), err, "table", "family_members")
	return members, err
}

// PublishedRecord returns the canonical row that approving requestID created.
// Only kinds with a promotion step have one.
func (s *familyService) PublishedRecord(ctx context.Context, kind domain.RequestKind, requestID string) (any, error) {
	switch kind {
	case domain.KindFamilyMember:
		m, err := s.families.GetByRequestID(ctx, requestID)
		if err != nil {
			return nil, err
		}
		return m, nil
	case domain.KindMember:
		m, err := s.members.GetByRequestID(ctx, requestID)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, &domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("%s requests have no separate published record", kind)}
}
