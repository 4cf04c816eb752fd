package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/core/port"
)

// PasswordHistoryRepository reads the password history log used for reuse
// prevention. Writes happen inside the account and reset transactions.
type PasswordHistoryRepository struct {
	db      pgPool
	builder squirrel.StatementBuilderType
}

func NewPasswordHistoryRepository(db pgPool) *PasswordHistoryRepository {
	return &PasswordHistoryRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Recent returns up to limit history entries for the account, newest first.
func (r *PasswordHistoryRepository) Recent(ctx context.Context, accountID int64, limit int) ([]domain.PasswordHistoryEntry, error) {
	stmt, args, err := r.builder.Select("id", "account_id", "password_hash", "set_at").
		From("acct.password_history").
		Where(squirrel.Eq{"account_id": accountID}).
		OrderBy("set_at DESC, id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select password history sql: %w", err)
	}

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query password history: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.PasswordHistoryEntry, 0, limit)
	for rows.Next() {
		var entry domain.PasswordHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.PasswordHash, &entry.SetAt); err != nil {
			return nil, fmt.Errorf("scan password history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate password history: %w", err)
	}

	return entries, nil
}

var _ port.PasswordHistoryRepository = (*PasswordHistoryRepository)(nil)
