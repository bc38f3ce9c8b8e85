package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/repository"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type familyMemberRepository struct {
	db dbtx
}

func NewFamilyMemberRepository(db *sql.DB) repository.FamilyMemberRepository {
	return &familyMemberRepository{db: db}
}

const familyMemberColumns = `id, name, gender, birth_date, death_date, father_id, mother_id, spouse_id, bio, request_id, created_at`

func (r *familyMemberRepository) Create(ctx context.Context, m *domain.FamilyMember) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO family_members (` + familyMemberColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query, m.ID, m.Name, m.Gender, m.BirthDate, m.DeathDate, m.FatherID, m.MotherID, m.SpouseID, m.Bio, m.RequestID, m.CreatedAt)
	return err
}

func (r *familyMemberRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.FamilyMember, error) {
	query := `SELECT ` + familyMemberColumns + ` FROM family_members WHERE request_id = $1`
	m, err := scanFamilyMember(r.db.QueryRowContext(ctx, query, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return m, err
}

func (r *familyMemberRepository) List(ctx context.Context, limit, offset int32) ([]domain.FamilyMember, error) {
	query := `SELECT ` + familyMemberColumns + ` FROM family_members ORDER BY name LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.FamilyMember
	for rows.Next() {
		m, err := scanFamilyMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func scanFamilyMember(row rowScanner) (*domain.FamilyMember, error) {
	m := &domain.FamilyMember{}
	var birth, death, father, mother, spouse, requestID sql.NullString
	err := row.Scan(&m.ID, &m.Name, &m.Gender, &birth, &death, &father, &mother, &spouse, &m.Bio, &requestID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.BirthDate = nullableString(birth)
	m.DeathDate = nullableString(death)
	m.FatherID = nullableString(father)
	m.MotherID = nullableString(mother)
	m.SpouseID = nullableString(spouse)
	m.RequestID = nullableString(requestID)
	return m, nil
}

type memberRepository struct {
	db dbtx
}

func NewMemberRepository(db *sql.DB) repository.MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) Create(ctx context.Context, m *domain.Member) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	query := `INSERT INTO members (id, user_id, name, email, relation, request_id, joined_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, m.ID, m.UserID, m.Name, m.Email, m.Relation, m.RequestID, m.JoinedAt)
	return err
}

func (r *memberRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.Member, error) {
	m := &domain.Member{}
	var userID, reqID sql.NullString
	query := `SELECT id, user_id, name, email, relation, request_id, joined_at FROM members WHERE request_id = $1`
	err := r.db.QueryRowContext(ctx, query, requestID).Scan(&m.ID, &userID, &m.Name, &m.Email, &m.Relation, &reqID, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.UserID = nullableString(userID)
	m.RequestID = nullableString(reqID)
	return m, nil
}

// canonicalWriter binds the canonical repositories to a transaction.
type canonicalWriter struct {
	families *familyMemberRepository
	members  *memberRepository
}

func newCanonicalWriter(tx *sql.Tx) domain.CanonicalWriter {
	return &canonicalWriter{
		families: &familyMemberRepository{db: tx},
		members:  &memberRepository{db: tx},
	}
}

func (w *canonicalWriter) CreateFamilyMember(ctx context.Context, m *domain.FamilyMember) error {
	return w.families.Create(ctx, m)
}

func (w *canonicalWriter) CreateMember(ctx context.Context, m *domain.Member) error {
	return w.members.Create(ctx, m)
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
