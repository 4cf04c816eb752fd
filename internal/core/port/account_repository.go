package port

import (
	"context"
	"time"

	"github.com/avelko/account-iam/internal/core/domain"
)

// AccountFilter narrows account listings.
type AccountFilter struct {
	Kind   domain.AccountKind
	Status domain.AccountStatus
	Limit  int
	Offset int
}

// AccountRepository exposes persistence behavior for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	// GetByLogin resolves an account by its case-folded login name within a
	// principal class, restricted to enabled status.
	GetByLogin(ctx context.Context, kind domain.AccountKind, login string) (*domain.Account, error)
	// GetByEmail resolves an account by email, case-insensitive, within a
	// principal class, restricted to enabled status.
	GetByEmail(ctx context.Context, kind domain.AccountKind, email string) (*domain.Account, error)
	List(ctx context.Context, filter AccountFilter) ([]domain.Account, error)
	Count(ctx context.Context, filter AccountFilter) (int, error)
	UpdateStatus(ctx context.Context, id int64, status domain.AccountStatus) error
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	// SetPassword updates the stored hash, stamps the change time, and
	// appends a password history entry as one atomic unit.
	SetPassword(ctx context.Context, id int64, passwordHash string, changedAt time.Time) error
}

// AttemptRepository is the append-only login attempt log.
type AttemptRepository interface {
	Append(ctx context.Context, attempt domain.LoginAttempt) error
	// Recent returns up to limit attempts for the login, newest first. A
	// non-empty ip additionally filters by source address.
	Recent(ctx context.Context, login, ip string, limit int) ([]domain.LoginAttempt, error)
}

// PasswordHistoryRepository queries the immutable password history log.
type PasswordHistoryRepository interface {
	Recent(ctx context.Context, accountID int64, limit int) ([]domain.PasswordHistoryEntry, error)
}

// ResetRepository persists password reset requests.
type ResetRepository interface {
	Create(ctx context.Context, request domain.PasswordResetRequest) (int64, error)
	// FindActive returns the newest unused, enabled request matching the
	// code for the account, or repository.ErrNotFound.
	FindActive(ctx context.Context, accountID int64, code string) (*domain.PasswordResetRequest, error)
	// Redeem flips the used flag and applies the new password hash plus a
	// history entry as one atomic unit.
	Redeem(ctx context.Context, requestID, accountID int64, passwordHash string, at time.Time) error
}
