package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/core/port"
)

// AttemptRepository persists login attempt records for the lockout window.
type AttemptRepository struct {
	db      pgPool
	builder squirrel.StatementBuilderType
}

func NewAttemptRepository(db pgPool) *AttemptRepository {
	return &AttemptRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append records one login attempt. The submitted login is truncated to the
// storable length before insert.
func (r *AttemptRepository) Append(ctx context.Context, attempt domain.LoginAttempt) error {
	stmt, args, err := r.builder.Insert("acct.login_attempts").
		Columns("account_id", "login", "ip", "surface", "succeeded", "created_at").
		Values(
			attempt.AccountID,
			domain.TruncateAttemptLogin(attempt.Login),
			attempt.IP,
			attempt.Surface,
			attempt.Succeeded,
			attempt.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert login attempt sql: %w", err)
	}

	if _, err := r.db.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}

	return nil
}

// Recent returns the newest attempts for a submitted login, newest first.
// An empty ip disables source address filtering.
func (r *AttemptRepository) Recent(ctx context.Context, login, ip string, limit int) ([]domain.LoginAttempt, error) {
	query := r.builder.Select("id", "account_id", "login", "ip", "surface", "succeeded", "created_at").
		From("acct.login_attempts").
		Where(squirrel.Eq{"login": domain.TruncateAttemptLogin(login)}).
		OrderBy("created_at DESC, id DESC").
		Limit(uint64(limit))

	if ip != "" {
		query = query.Where(squirrel.Eq{"ip": ip})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select login attempts sql: %w", err)
	}

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query login attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]domain.LoginAttempt, 0, limit)
	for rows.Next() {
		var (
			attempt   domain.LoginAttempt
			accountID *int64
			createdAt time.Time
		)
		if err := rows.Scan(
			&attempt.ID,
			&accountID,
			&attempt.Login,
			&attempt.IP,
			&attempt.Surface,
			&attempt.Succeeded,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan login attempt: %w", err)
		}
		attempt.AccountID = accountID
		attempt.CreatedAt = createdAt
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate login attempts: %w", err)
	}

	return attempts, nil
}

var _ port.AttemptRepository = (*AttemptRepository)(nil)
