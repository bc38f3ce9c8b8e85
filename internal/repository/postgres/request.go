package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/logger"
	"familytree-backend/internal/repository"
)

const requestColumns = `id, status, requested_by, payload, created_at, updated_at`

type requestRepository struct {
	db *sql.DB
}

func NewRequestRepository(db *sql.DB) repository.RequestRepository {
	return &requestRepository{db: db}
}

func tableFor(kind domain.RequestKind) (string, error) {
	spec, ok := kind.Spec()
	if !ok {
		return "", &domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown request kind %q", kind)}
	}
	return spec.Table, nil
}

func scanRequest(row rowScanner, kind domain.RequestKind) (*domain.Request, error) {
	req := &domain.Request{Kind: kind}
	var requestedBy sql.NullString
	var payload []byte
	if err := row.Scan(&req.ID, &req.Status, &requestedBy, &payload, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return nil, err
	}
	if requestedBy.Valid {
		req.RequestedBy = &requestedBy.String
	}
	req.Payload = payload
	return req, nil
}

func (r *requestRepository) Create(ctx context.Context, req *domain.Request) error {
	table, err := tableFor(req.Kind)
	if err != nil {
		return err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.UpdatedAt = req.CreatedAt
	req.Status = domain.RequestStatusPending

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6)`, table, requestColumns)
	logger.DatabaseCall("INSERT", table, "requestID", req.ID)
	_, err = r.db.ExecContext(ctx, query, req.ID, req.Status, req.RequestedBy, []byte(req.Payload), req.CreatedAt, req.UpdatedAt)
	logger.DatabaseResult("INSERT", 1, err, "requestID", req.ID)
	return err
}

func (r *requestRepository) GetByID(ctx context.Context, kind domain.RequestKind, id string) (*domain.Request, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, requestColumns, table)
	req, err := scanRequest(r.db.QueryRowContext(ctx, query, id), kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return req, err
}

func (r *requestRepository) ListByStatus(ctx context.Context, kind domain.RequestKind, status domain.RequestStatus, limit, offset int32) ([]domain.Request, int32, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, 0, err
	}

	var total int32
	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s WHERE status = $1`, table)
	if err := r.db.QueryRowContext(ctx, countQuery, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, requestColumns, table)
	rows, err := r.db.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	reqs, err := collectRequests(rows, kind)
	if err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

func (r *requestRepository) ListBySubmitter(ctx context.Context, kind domain.RequestKind, userID string) ([]domain.Request, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE requested_by = $1 ORDER BY created_at DESC`, requestColumns, table)
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows, kind)
}

func (r *requestRepository) ListPendingOlderThan(ctx context.Context, kind domain.RequestKind, before time.Time) ([]domain.Request, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE status = $1 AND created_at < $2 ORDER BY created_at`, requestColumns, table)
	rows, err := r.db.QueryContext(ctx, query, domain.RequestStatusPending, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows, kind)
}

func (r *requestRepository) CountByStatus(ctx context.Context, kind domain.RequestKind, status domain.RequestStatus) (int, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	var count int
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE status = $1`, table)
	err = r.db.QueryRowContext(ctx, query, status).Scan(&count)
	return count, err
}

func (r *requestRepository) Transition(ctx context.Context, kind domain.RequestKind, id string, target domain.RequestStatus, at time.Time, promote domain.Promotion) (*domain.Request, error) {
	logger.EnterMethod("requestRepository.Transition", "kind", kind, "requestID", id, "target", target)

	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	if !target.IsTerminal() {
		return nil, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot transition to %q", target)}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback()

	lockQuery := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 FOR UPDATE`, requestColumns, table)
	req, err := scanRequest(tx.QueryRowContext(ctx, lockQuery, id), kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(req.Status, target) {
		logger.ExitMethodWithError("requestRepository.Transition", domain.ErrInvalidState, "currentStatus", req.Status)
		return nil, domain.ErrInvalidState
	}

	if promote != nil {
		if err := promote(ctx, newCanonicalWriter(tx), req); err != nil {
			perr := &domain.PromotionError{Kind: kind, RequestID: id, Err: err}
			logger.ExitMethodWithError("requestRepository.Transition", perr)
			return nil, perr
		}
	}

	updateQuery := fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`, table)
	logger.DatabaseCall("UPDATE", table, "requestID", id, "status", target)
	res, err := tx.ExecContext(ctx, updateQuery, target, at, id, domain.RequestStatusPending)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", affected, err, "requestID", id)
	if err != nil {
		return nil, err
	}
	if affected != 1 {
		return nil, domain.ErrInvalidState
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}

	req.Status = target
	req.UpdatedAt = at
	logger.ExitMethod("requestRepository.Transition", "requestID", id, "status", target)
	return req, nil
}

func collectRequests(rows *sql.Rows, kind domain.RequestKind) ([]domain.Request, error) {
	var reqs []domain.Request
	for rows.Next() {
		req, err := scanRequest(rows, kind)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *req)
	}
	return reqs, rows.Err()
}
