package port

import (
	"context"

	"github.com/avelko/account-iam/internal/core/domain"
)

// PolicyRepository handles policy persistence and resolution.
type PolicyRepository interface {
	Create(ctx context.Context, policy domain.Policy) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Policy, error)
	GetByName(ctx context.Context, name string) (*domain.Policy, error)
	List(ctx context.Context) ([]domain.Policy, error)
	ListByAccount(ctx context.Context, accountID int64) ([]domain.Policy, error)
	AssignToAccount(ctx context.Context, policyID, accountID int64) error
	// LockoutForKind resolves the policy governing lockout for a principal
	// class: the lowest-priority lockout-enabled policy whose Kind matches.
	// Returns repository.ErrNotFound when no such policy exists.
	LockoutForKind(ctx context.Context, kind domain.AccountKind) (*domain.Policy, error)
}
