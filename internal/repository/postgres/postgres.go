package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"familytree-backend/internal/logger"
	"familytree-backend/internal/repository"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
	repository.RequestRepository
	repository.NotificationRepository
	repository.FamilyMemberRepository
	repository.MemberRepository
	repository.UserRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                     db,
		RequestRepository:      NewRequestRepository(db),
		NotificationRepository: NewNotificationRepository(db),
		FamilyMemberRepository: NewFamilyMemberRepository(db),
		MemberRepository:       NewMemberRepository(db),
		UserRepository:         NewUserRepository(db),
	}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	logger.Info("Applying database schema")
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
