package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/core/port"
	"github.com/avelko/account-iam/internal/repository"
)

// LockoutEvaluator decides whether a login name is inside an active lockout
// window. It is a pure read over the persisted attempt log: no mutable
// lockout state exists, so concurrent evaluations are naturally consistent
// with the history.
type LockoutEvaluator struct {
	policies port.PolicyRepository
	attempts port.AttemptRepository
	now      func() time.Time
}

// NewLockoutEvaluator constructs an evaluator over the given repositories.
func NewLockoutEvaluator(policies port.PolicyRepository, attempts port.AttemptRepository) *LockoutEvaluator {
	return &LockoutEvaluator{
		policies: policies,
		attempts: attempts,
		now:      time.Now,
	}
}

// WithClock overrides the evaluator clock, for tests.
func (e *LockoutEvaluator) WithClock(clock func() time.Time) *LockoutEvaluator {
	if clock != nil {
		e.now = clock
	}
	return e
}

// IsLocked evaluates the lockout window for a login name of the given
// principal class. The governing policy is resolved per class because the
// requester has not been identified yet at evaluation time.
//
// The window is fixed-size: the newest max-attempts rows must all be
// failures, span no more than the policy timeframe, and the ban counted from
// the newest failure must still be running.
func (e *LockoutEvaluator) IsLocked(ctx context.Context, kind domain.AccountKind, login, sourceIP string) (bool, error) {
	policy, err := e.policies.LockoutForKind(ctx, kind)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("resolve lockout policy: %w", err)
	}

	if !policy.LockoutEnabled || policy.MaxAttempts <= 0 {
		return false, nil
	}

	ip := ""
	if policy.LockoutByIP {
		ip = sourceIP
	}

	attempts, err := e.attempts.Recent(ctx, login, ip, policy.MaxAttempts)
	if err != nil {
		return false, fmt.Errorf("fetch recent attempts: %w", err)
	}

	if len(attempts) < policy.MaxAttempts {
		return false, nil
	}

	for _, attempt := range attempts {
		if attempt.Succeeded {
			return false, nil
		}
	}

	newest := attempts[0].CreatedAt
	oldest := attempts[len(attempts)-1].CreatedAt
	if newest.Sub(oldest) > policy.LoginTimeframe {
		return false, nil
	}

	banUntil := newest.Add(policy.BanTime)
	return e.now().Before(banUntil), nil
}
