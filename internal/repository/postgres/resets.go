package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/core/port"
	"github.com/avelko/account-iam/internal/repository"
)

// ResetRepository persists password reset requests.
type ResetRepository struct {
	db      pgPool
	builder squirrel.StatementBuilderType
}

func NewResetRepository(db pgPool) *ResetRepository {
	return &ResetRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *ResetRepository) Create(ctx context.Context, request domain.PasswordResetRequest) (int64, error) {
	stmt, args, err := r.builder.Insert("acct.password_reset_requests").
		Columns("account_id", "code", "used", "requested_at", "ip", "status").
		Values(
			request.AccountID,
			request.Code,
			request.Used,
			request.RequestedAt,
			request.IP,
			request.Status,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert reset request sql: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, stmt, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert reset request: %w", err)
	}

	return id, nil
}

// FindActive returns the newest unused, enabled reset request carrying the
// code for the account. Expiry is the caller's concern.
func (r *ResetRepository) FindActive(ctx context.Context, accountID int64, code string) (*domain.PasswordResetRequest, error) {
	stmt, args, err := r.builder.Select("id", "account_id", "code", "used", "requested_at", "ip", "status").
		From("acct.password_reset_requests").
		Where(squirrel.Eq{
			"account_id": accountID,
			"code":       code,
			"used":       false,
			"status":     domain.ResetRequestEnabled,
		}).
		OrderBy("requested_at DESC, id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select reset request sql: %w", err)
	}

	var request domain.PasswordResetRequest
	if err := r.db.QueryRow(ctx, stmt, args...).Scan(
		&request.ID,
		&request.AccountID,
		&request.Code,
		&request.Used,
		&request.RequestedAt,
		&request.IP,
		&request.Status,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan reset request: %w", err)
	}

	return &request, nil
}

// Redeem marks the request used and applies the new password hash plus its
// history entry inside one transaction. Redemption of an already used
// request reports repository.ErrNotFound.
func (r *ResetRepository) Redeem(ctx context.Context, requestID, accountID int64, passwordHash string, at time.Time) error {
	markStmt, markArgs, err := r.builder.Update("acct.password_reset_requests").
		Set("used", true).
		Where(squirrel.Eq{"id": requestID, "used": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark reset used sql: %w", err)
	}

	updStmt, updArgs, err := r.builder.Update("acct.accounts").
		Set("password_hash", passwordHash).
		Set("password_changed_at", at).
		Where(squirrel.Eq{"id": accountID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	histStmt, histArgs, err := r.builder.Insert("acct.password_history").
		Columns("account_id", "password_hash", "set_at").
		Values(accountID, passwordHash, at).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert password history sql: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin redeem reset: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, markStmt, markArgs...)
	if err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	ct, err = tx.Exec(ctx, updStmt, updArgs...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	if _, err := tx.Exec(ctx, histStmt, histArgs...); err != nil {
		return fmt.Errorf("insert password history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit redeem reset: %w", err)
	}

	return nil
}

var _ port.ResetRepository = (*ResetRepository)(nil)
