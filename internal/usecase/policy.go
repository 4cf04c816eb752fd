package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/core/port"
	"github.com/avelko/account-iam/internal/repository"
)

// PolicyService covers policy management and assignment.
type PolicyService struct {
	policies port.PolicyRepository
	accounts port.AccountRepository
	logger   *zap.Logger
}

// NewPolicyService constructs a PolicyService.
func NewPolicyService(policies port.PolicyRepository, accounts port.AccountRepository, log *zap.Logger) *PolicyService {
	return &PolicyService{policies: policies, accounts: accounts, logger: log}
}

// Create persists a new policy. Names are unique.
func (s *PolicyService) Create(ctx context.Context, policy domain.Policy) (*domain.Policy, error) {
	if !policy.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown principal kind %q", ErrInvalidInput, policy.Kind)
	}

	if _, err := s.policies.GetByName(ctx, policy.Name); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check policy uniqueness: %w", err)
	}

	id, err := s.policies.Create(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("create policy: %w", err)
	}
	policy.ID = id

	s.logger.Info("policy created",
		zap.Int64("policy_id", id),
		zap.String("name", policy.Name),
		zap.String("kind", string(policy.Kind)),
	)

	return &policy, nil
}

// Get fetches a policy by id.
func (s *PolicyService) Get(ctx context.Context, id int64) (*domain.Policy, error) {
	policy, err := s.policies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch policy: %w", err)
	}
	return policy, nil
}

// List returns every policy ordered by priority.
func (s *PolicyService) List(ctx context.Context) ([]domain.Policy, error) {
	policies, err := s.policies.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	return policies, nil
}

// Assign attaches a policy to an account. Both must exist; assignment is
// idempotent.
func (s *PolicyService) Assign(ctx context.Context, policyID, accountID int64) error {
	if _, err := s.policies.GetByID(ctx, policyID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("fetch policy: %w", err)
	}

	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("fetch account: %w", err)
	}

	if err := s.policies.AssignToAccount(ctx, policyID, accountID); err != nil {
		return fmt.Errorf("assign policy: %w", err)
	}

	return nil
}

// ListByAccount returns the policies attached to an account.
func (s *PolicyService) ListByAccount(ctx context.Context, accountID int64) ([]domain.Policy, error) {
	policies, err := s.policies.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list account policies: %w", err)
	}
	return policies, nil
}
