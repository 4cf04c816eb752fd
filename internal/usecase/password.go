package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/core/port"
	"github.com/avelko/account-iam/internal/infra/config"
	"github.com/avelko/account-iam/internal/infra/email"
	"github.com/avelko/account-iam/internal/infra/security"
)

// PasswordService enforces password rules and applies password changes.
type PasswordService struct {
	accounts  port.AccountRepository
	history   port.PasswordHistoryRepository
	policies  port.PolicyRepository
	hasher    port.PasswordHasher
	publisher port.EventPublisher
	notifier  port.Notifier
	cfg       config.PasswordSettings
	logger    *zap.Logger
	now       func() time.Time
}

// NewPasswordService constructs a PasswordService.
func NewPasswordService(
	accounts port.AccountRepository,
	history port.PasswordHistoryRepository,
	policies port.PolicyRepository,
	hasher port.PasswordHasher,
	publisher port.EventPublisher,
	notifier port.Notifier,
	cfg config.PasswordSettings,
	log *zap.Logger,
) *PasswordService {
	return &PasswordService{
		accounts:  accounts,
		history:   history,
		policies:  policies,
		hasher:    hasher,
		publisher: publisher,
		notifier:  notifier,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the service clock, for tests.
func (s *PasswordService) WithClock(clock func() time.Time) *PasswordService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// EffectivePolicyFor resolves the single policy governing an account's
// password rules. Nil means no policy is assigned and nothing is enforced
// beyond the confirmation rule.
func (s *PasswordService) EffectivePolicyFor(ctx context.Context, account *domain.Account) (*domain.Policy, error) {
	assigned, err := s.policies.ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("list account policies: %w", err)
	}
	return domain.EffectivePolicy(assigned), nil
}

// ValidateOptions select which optional rules Validate applies.
type ValidateOptions struct {
	// SkipReuseHistory bypasses the reuse rule, used by the reset flow when
	// reuse enforcement on reset is not configured.
	SkipReuseHistory bool
}

// Validate checks a candidate password against the account's effective
// policy. It returns every violation found rather than stopping at the
// first, each scoped to the field it concerns.
func (s *PasswordService) Validate(ctx context.Context, account *domain.Account, policy *domain.Policy, candidate, confirm string, opts ValidateOptions) ([]PolicyViolation, error) {
	var violations []PolicyViolation

	if candidate != confirm {
		violations = append(violations, PolicyViolation{
			Field:   "password2",
			Message: "passwords must match",
		})
	}

	if policy != nil && policy.PasswordComplexity {
		if !security.PasswordLengthOK(candidate) {
			violations = append(violations, PolicyViolation{
				Field:   "password",
				Message: fmt.Sprintf("password must be %d to %d characters", security.MinPasswordLength, security.MaxPasswordLength),
			})
		} else if !security.PasswordComplexityOK(candidate) {
			violations = append(violations, PolicyViolation{
				Field:   "password",
				Message: "password must contain at least three of: lowercase, uppercase, digit, special character",
			})
		}
	}

	if s.cfg.MinStrengthScore > 0 {
		score := security.PasswordStrengthScore(candidate, account.Login, account.Email)
		if score < s.cfg.MinStrengthScore {
			violations = append(violations, PolicyViolation{
				Field:   "password",
				Message: "password is too easy to guess",
			})
		}
	}

	if policy != nil && policy.PasswordReuseHistory > 0 && !opts.SkipReuseHistory {
		reused, err := s.candidateReused(ctx, account, policy.PasswordReuseHistory, candidate)
		if err != nil {
			return nil, err
		}
		if reused {
			violations = append(violations, PolicyViolation{
				Field:   "password",
				Message: fmt.Sprintf("password must differ from the previous %d passwords", policy.PasswordReuseHistory),
			})
		}
	}

	return violations, nil
}

func (s *PasswordService) candidateReused(ctx context.Context, account *domain.Account, depth int, candidate string) (bool, error) {
	if account.PasswordHash != "" {
		match, err := s.hasher.Verify(candidate, account.PasswordHash)
		if err == nil && match {
			return true, nil
		}
	}

	entries, err := s.history.Recent(ctx, account.ID, depth)
	if err != nil {
		return false, fmt.Errorf("fetch password history: %w", err)
	}

	for _, entry := range entries {
		match, err := s.hasher.Verify(candidate, entry.PasswordHash)
		if err == nil && match {
			return true, nil
		}
	}

	return false, nil
}

// Change applies a self-service password change: the caller must prove the
// current password before any new candidate is accepted. The hash update and
// history append are one atomic unit in the store.
func (s *PasswordService) Change(ctx context.Context, account *domain.Account, current, candidate, confirm string) error {
	match, err := s.hasher.Verify(current, account.PasswordHash)
	if err != nil || !match {
		return ErrBadCredentials
	}

	policy, err := s.EffectivePolicyFor(ctx, account)
	if err != nil {
		return err
	}

	violations, err := s.Validate(ctx, account, policy, candidate, confirm, ValidateOptions{})
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return &PolicyViolationError{Violations: violations}
	}

	return s.apply(ctx, account, candidate, "self_service_change")
}

// Set applies an administrative password change without the previous-secret
// rule.
func (s *PasswordService) Set(ctx context.Context, account *domain.Account, candidate, confirm string) error {
	policy, err := s.EffectivePolicyFor(ctx, account)
	if err != nil {
		return err
	}

	violations, err := s.Validate(ctx, account, policy, candidate, confirm, ValidateOptions{})
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return &PolicyViolationError{Violations: violations}
	}

	return s.apply(ctx, account, candidate, "administrative_set")
}

func (s *PasswordService) apply(ctx context.Context, account *domain.Account, candidate, reason string) error {
	hash, err := s.hasher.Hash(candidate)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	changedAt := s.now().UTC()
	if err := s.accounts.SetPassword(ctx, account.ID, hash, changedAt); err != nil {
		return fmt.Errorf("persist password: %w", err)
	}

	account.PasswordHash = hash
	account.PasswordChangedAt = changedAt

	event := domain.PasswordChangedEvent{
		EventID:   uuid.NewString(),
		AccountID: account.ID,
		Kind:      account.Kind,
		ChangedAt: changedAt,
		Reason:    reason,
	}
	if err := s.publisher.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed event failed", zap.Int64("account_id", account.ID), zap.Error(err))
	}

	if _, err := s.notifier.Send(ctx, *account, email.TemplatePasswordChanged, nil); err != nil {
		s.logger.Warn("password changed notification failed", zap.Int64("account_id", account.ID), zap.Error(err))
	}

	return nil
}

// Expired reports whether the account's password has outlived its policy
// maximum age. Evaluated on every authenticated request, not only at login.
func (s *PasswordService) Expired(ctx context.Context, account *domain.Account) (bool, error) {
	policy, err := s.EffectivePolicyFor(ctx, account)
	if err != nil {
		return false, err
	}
	return policy.PasswordExpired(*account, s.now().UTC()), nil
}
