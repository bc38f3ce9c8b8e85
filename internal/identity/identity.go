// Package identity adapts the account stores that own user role metadata.
package identity

import (
	"context"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/logger"
	"familytree-backend/internal/repository"
)

// Provider reads accounts and merges metadata patches into them.
type Provider interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	// UpdateUserMetadata merges patch into the user's metadata. Keys absent from patch are preserved.
	UpdateUserMetadata(ctx context.Context, id string, patch map[string]any) error
}

// PostgresProvider serves accounts from the users table.
type PostgresProvider struct {
	users repository.UserRepository
}

func NewPostgresProvider(users repository.UserRepository) *PostgresProvider {
	return &PostgresProvider{users: users}
}

func (p *PostgresProvider) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return p.users.GetByID(ctx, id)
}

func (p *PostgresProvider) ListUsers(ctx context.Context) ([]domain.User, error) {
	logger.DatabaseCall("SELECT", "users")
	users, err := p.users.List(ctx)
	logger.DatabaseResult("SELECT", int64(len(users)), err)
	return users, err
}

func (p *PostgresProvider) UpdateUserMetadata(ctx context.Context, id string, patch map[string]any) error {
	return p.users.UpdateMetadata(ctx, id, patch)
}
