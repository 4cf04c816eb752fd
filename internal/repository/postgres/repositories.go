package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories bundles every PostgreSQL-backed repository over one pool.
type Repositories struct {
	Accounts *AccountRepository
	Attempts *AttemptRepository
	History  *PasswordHistoryRepository
	Policies *PolicyRepository
	Resets   *ResetRepository
}

func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Accounts: NewAccountRepository(pool),
		Attempts: NewAttemptRepository(pool),
		History:  NewPasswordHistoryRepository(pool),
		Policies: NewPolicyRepository(pool),
		Resets:   NewResetRepository(pool),
	}
}
