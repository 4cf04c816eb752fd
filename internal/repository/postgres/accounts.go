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

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db      pgPool
	builder squirrel.StatementBuilderType
}

// NewAccountRepository wires a PostgreSQL-backed account repository.
func NewAccountRepository(db pgPool) *AccountRepository {
	return &AccountRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new account row along with its initial password history
// entry, atomically.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) (int64, error) {
	stmt, args, err := r.builder.Insert("acct.accounts").
		Columns("kind", "login", "email", "password_hash", "password_changed_at", "status", "created_at").
		Values(
			account.Kind,
			domain.FoldLogin(account.Login),
			domain.FoldLogin(account.Email),
			account.PasswordHash,
			account.PasswordChangedAt,
			account.Status,
			account.CreatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert account sql: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin create account: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	if err := tx.QueryRow(ctx, stmt, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}

	histStmt, histArgs, err := r.builder.Insert("acct.password_history").
		Columns("account_id", "password_hash", "set_at").
		Values(id, account.PasswordHash, account.PasswordChangedAt).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert password history sql: %w", err)
	}

	if _, err := tx.Exec(ctx, histStmt, histArgs...); err != nil {
		return 0, fmt.Errorf("insert password history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit create account: %w", err)
	}

	return id, nil
}

// GetByID retrieves an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	stmt, args, err := r.selectAccounts().
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	return r.scanAccount(r.db.QueryRow(ctx, stmt, args...))
}

// GetByLogin resolves an enabled account by case-folded login within a
// principal class.
func (r *AccountRepository) GetByLogin(ctx context.Context, kind domain.AccountKind, login string) (*domain.Account, error) {
	stmt, args, err := r.selectAccounts().
		Where(squirrel.Eq{
			"kind":   kind,
			"login":  domain.FoldLogin(login),
			"status": domain.AccountStatusEnabled,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by login sql: %w", err)
	}

	return r.scanAccount(r.db.QueryRow(ctx, stmt, args...))
}

// GetByEmail resolves an enabled account by case-insensitive email within a
// principal class.
func (r *AccountRepository) GetByEmail(ctx context.Context, kind domain.AccountKind, email string) (*domain.Account, error) {
	stmt, args, err := r.selectAccounts().
		Where(squirrel.Eq{
			"kind":   kind,
			"email":  domain.FoldLogin(email),
			"status": domain.AccountStatusEnabled,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by email sql: %w", err)
	}

	return r.scanAccount(r.db.QueryRow(ctx, stmt, args...))
}

// List returns accounts with optional filtering and pagination.
func (r *AccountRepository) List(ctx context.Context, filter port.AccountFilter) ([]domain.Account, error) {
	query := r.selectAccounts().OrderBy("created_at DESC, id DESC")

	if filter.Kind != "" {
		query = query.Where(squirrel.Eq{"kind": filter.Kind})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list accounts sql: %w", err)
	}

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		var (
			account   domain.Account
			lastLogin *time.Time
		)
		if err := rows.Scan(
			&account.ID,
			&account.Kind,
			&account.Login,
			&account.Email,
			&account.PasswordHash,
			&account.PasswordChangedAt,
			&account.Status,
			&account.CreatedAt,
			&lastLogin,
		); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		account.LastLogin = lastLogin
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

// Count returns the total number of accounts matching the filter.
func (r *AccountRepository) Count(ctx context.Context, filter port.AccountFilter) (int, error) {
	query := r.builder.Select("COUNT(*)").From("acct.accounts")

	if filter.Kind != "" {
		query = query.Where(squirrel.Eq{"kind": filter.Kind})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count accounts sql: %w", err)
	}

	var count int64
	if err := r.db.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("scan accounts count: %w", err)
	}

	return int(count), nil
}

// UpdateStatus updates the lifecycle status for an account.
func (r *AccountRepository) UpdateStatus(ctx context.Context, id int64, status domain.AccountStatus) error {
	stmt, args, err := r.builder.Update("acct.accounts").
		Set("status", status).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update account status sql: %w", err)
	}

	ct, err := r.db.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update account status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateLastLogin stamps the most recent successful authentication time.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	stmt, args, err := r.builder.Update("acct.accounts").
		Set("last_login", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update last login sql: %w", err)
	}

	ct, err := r.db.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetPassword updates the stored hash, stamps the change time, and appends a
// password history entry within a single transaction.
func (r *AccountRepository) SetPassword(ctx context.Context, id int64, passwordHash string, changedAt time.Time) error {
	updStmt, updArgs, err := r.builder.Update("acct.accounts").
		Set("password_hash", passwordHash).
		Set("password_changed_at", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	histStmt, histArgs, err := r.builder.Insert("acct.password_history").
		Columns("account_id", "password_hash", "set_at").
		Values(id, passwordHash, changedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert password history sql: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin set password: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, updStmt, updArgs...)
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
		return fmt.Errorf("commit set password: %w", err)
	}

	return nil
}

func (r *AccountRepository) selectAccounts() squirrel.SelectBuilder {
	return r.builder.Select(
		"id",
		"kind",
		"login",
		"email",
		"password_hash",
		"password_changed_at",
		"status",
		"created_at",
		"last_login",
	).From("acct.accounts")
}

func (r *AccountRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account   domain.Account
		lastLogin *time.Time
	)

	if err := row.Scan(
		&account.ID,
		&account.Kind,
		&account.Login,
		&account.Email,
		&account.PasswordHash,
		&account.PasswordChangedAt,
		&account.Status,
		&account.CreatedAt,
		&lastLogin,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	account.LastLogin = lastLogin
	return &account, nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
