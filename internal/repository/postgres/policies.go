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

// PolicyRepository implements port.PolicyRepository using PostgreSQL.
// Timeframes are stored as integer seconds.
type PolicyRepository struct {
	db      pgPool
	builder squirrel.StatementBuilderType
}

func NewPolicyRepository(db pgPool) *PolicyRepository {
	return &PolicyRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *PolicyRepository) Create(ctx context.Context, policy domain.Policy) (int64, error) {
	stmt, args, err := r.builder.Insert("acct.policies").
		Columns(
			"name", "kind", "priority",
			"lockout_enabled", "max_attempts", "login_timeframe_secs", "ban_time_secs", "lockout_by_ip",
			"password_complexity", "password_reuse_history", "password_reset_days",
		).
		Values(
			policy.Name, policy.Kind, policy.Priority,
			policy.LockoutEnabled, policy.MaxAttempts,
			int64(policy.LoginTimeframe/time.Second), int64(policy.BanTime/time.Second),
			policy.LockoutByIP,
			policy.PasswordComplexity, policy.PasswordReuseHistory, policy.PasswordResetDays,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert policy sql: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, stmt, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert policy: %w", err)
	}

	return id, nil
}

func (r *PolicyRepository) GetByID(ctx context.Context, id int64) (*domain.Policy, error) {
	stmt, args, err := r.selectPolicies().
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select policy sql: %w", err)
	}

	return r.scanPolicy(r.db.QueryRow(ctx, stmt, args...))
}

func (r *PolicyRepository) GetByName(ctx context.Context, name string) (*domain.Policy, error) {
	stmt, args, err := r.selectPolicies().
		Where(squirrel.Eq{"name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select policy by name sql: %w", err)
	}

	return r.scanPolicy(r.db.QueryRow(ctx, stmt, args...))
}

func (r *PolicyRepository) List(ctx context.Context) ([]domain.Policy, error) {
	stmt, args, err := r.selectPolicies().
		OrderBy("priority ASC, name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list policies sql: %w", err)
	}

	return r.queryPolicies(ctx, stmt, args...)
}

// ListByAccount returns every policy assigned to an account through the
// account_policies join table.
func (r *PolicyRepository) ListByAccount(ctx context.Context, accountID int64) ([]domain.Policy, error) {
	stmt, args, err := r.selectPolicies().
		Join("acct.account_policies ap ON ap.policy_id = p.id").
		Where(squirrel.Eq{"ap.account_id": accountID}).
		OrderBy("p.priority ASC, p.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list policies by account sql: %w", err)
	}

	return r.queryPolicies(ctx, stmt, args...)
}

func (r *PolicyRepository) AssignToAccount(ctx context.Context, policyID, accountID int64) error {
	stmt, args, err := r.builder.Insert("acct.account_policies").
		Columns("account_id", "policy_id").
		Values(accountID, policyID).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build assign policy sql: %w", err)
	}

	if _, err := r.db.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("assign policy: %w", err)
	}

	return nil
}

// LockoutForKind resolves the lockout policy governing a principal class:
// the lowest-priority lockout-enabled policy whose kind matches, ties broken
// by name.
func (r *PolicyRepository) LockoutForKind(ctx context.Context, kind domain.AccountKind) (*domain.Policy, error) {
	stmt, args, err := r.selectPolicies().
		Where(squirrel.Eq{
			"p.kind":            kind,
			"p.lockout_enabled": true,
		}).
		OrderBy("p.priority ASC, p.name ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lockout policy sql: %w", err)
	}

	return r.scanPolicy(r.db.QueryRow(ctx, stmt, args...))
}

func (r *PolicyRepository) selectPolicies() squirrel.SelectBuilder {
	return r.builder.Select(
		"p.id",
		"p.name",
		"p.kind",
		"p.priority",
		"p.lockout_enabled",
		"p.max_attempts",
		"p.login_timeframe_secs",
		"p.ban_time_secs",
		"p.lockout_by_ip",
		"p.password_complexity",
		"p.password_reuse_history",
		"p.password_reset_days",
	).From("acct.policies p")
}

func (r *PolicyRepository) queryPolicies(ctx context.Context, stmt string, args ...any) ([]domain.Policy, error) {
	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()

	policies := make([]domain.Policy, 0)
	for rows.Next() {
		policy, err := scanPolicyRow(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *policy)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}

	return policies, nil
}

func (r *PolicyRepository) scanPolicy(row pgx.Row) (*domain.Policy, error) {
	policy, err := scanPolicyRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return policy, nil
}

func scanPolicyRow(row pgx.Row) (*domain.Policy, error) {
	var (
		policy         domain.Policy
		timeframeSecs  int64
		banTimeSecs    int64
	)

	if err := row.Scan(
		&policy.ID,
		&policy.Name,
		&policy.Kind,
		&policy.Priority,
		&policy.LockoutEnabled,
		&policy.MaxAttempts,
		&timeframeSecs,
		&banTimeSecs,
		&policy.LockoutByIP,
		&policy.PasswordComplexity,
		&policy.PasswordReuseHistory,
		&policy.PasswordResetDays,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan policy: %w", err)
	}

	policy.LoginTimeframe = time.Duration(timeframeSecs) * time.Second
	policy.BanTime = time.Duration(banTimeSecs) * time.Second
	return &policy, nil
}

var _ port.PolicyRepository = (*PolicyRepository)(nil)
