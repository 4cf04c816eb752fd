package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/core/port"
	"github.com/avelko/account-iam/internal/infra/config"
	"github.com/avelko/account-iam/internal/infra/email"
	"github.com/avelko/account-iam/internal/infra/logger"
	"github.com/avelko/account-iam/internal/infra/security"
	"github.com/avelko/account-iam/internal/repository"
)

const resetRateLimitPrefix = "reset"

// ResetService runs the time-boxed password reset code flow for the public
// principal class. A request transitions Requested to Used on redemption;
// expiry is evaluated on read and never stored.
type ResetService struct {
	accounts  port.AccountRepository
	resets    port.ResetRepository
	passwords *PasswordService
	hasher    port.PasswordHasher
	codes     *security.ResetCodeGenerator
	limiter   port.RateLimitStore
	notifier  port.Notifier
	publisher port.EventPublisher
	resetCfg  config.ResetSettings
	limitCfg  config.RateLimitSettings
	logger    *zap.Logger
	now       func() time.Time
}

// NewResetService constructs a ResetService.
func NewResetService(
	accounts port.AccountRepository,
	resets port.ResetRepository,
	passwords *PasswordService,
	hasher port.PasswordHasher,
	codes *security.ResetCodeGenerator,
	limiter port.RateLimitStore,
	notifier port.Notifier,
	publisher port.EventPublisher,
	resetCfg config.ResetSettings,
	limitCfg config.RateLimitSettings,
	log *zap.Logger,
) *ResetService {
	return &ResetService{
		accounts:  accounts,
		resets:    resets,
		passwords: passwords,
		hasher:    hasher,
		codes:     codes,
		limiter:   limiter,
		notifier:  notifier,
		publisher: publisher,
		resetCfg:  resetCfg,
		limitCfg:  limitCfg,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the service clock, for tests.
func (s *ResetService) WithClock(clock func() time.Time) *ResetService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Request issues a reset code for the account behind the email and delivers
// it out of band. The returned bool reports whether delivery succeeded;
// delivery failure does not fail the request. An unknown email is the one
// reset outcome deliberately revealed to the caller.
func (s *ResetService) Request(ctx context.Context, emailAddr, sourceIP string) (bool, error) {
	account, err := s.accounts.GetByEmail(ctx, domain.KindUser, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrEmailNotFound
		}
		return false, fmt.Errorf("fetch account by email: %w", err)
	}

	now := s.now().UTC()
	identifier := fmt.Sprintf("%s:%s", resetRateLimitPrefix, domain.FoldLogin(emailAddr))

	if s.limiter != nil && s.limitCfg.PasswordResetMaxAttempts > 0 {
		if err := s.limiter.TrimWindow(ctx, identifier, s.limitCfg.WindowDuration, now); err != nil {
			s.logger.Warn("trim reset rate window failed", zap.Error(err))
		}

		count, err := s.limiter.CountAttempts(ctx, identifier, s.limitCfg.WindowDuration, now)
		if err != nil {
			s.logger.Warn("count reset attempts failed", zap.Error(err))
		} else if count >= s.limitCfg.PasswordResetMaxAttempts {
			return false, ErrTooManyRequests
		}
	}

	code := s.codes.Generate(s.resetCfg.CodeLength)

	request := domain.PasswordResetRequest{
		AccountID:   account.ID,
		Code:        code,
		Used:        false,
		RequestedAt: now,
		IP:          sourceIP,
		Status:      domain.ResetRequestEnabled,
	}

	requestID, err := s.resets.Create(ctx, request)
	if err != nil {
		return false, fmt.Errorf("persist reset request: %w", err)
	}

	if s.limiter != nil {
		if err := s.limiter.RecordAttempt(ctx, identifier, now); err != nil {
			s.logger.Warn("record reset attempt failed", zap.Error(err))
		}
	}

	delivered, err := s.notifier.Send(ctx, *account, email.TemplatePasswordResetCode, map[string]string{
		"code":       code,
		"expires_in": s.resetCfg.TTL.String(),
	})
	if err != nil {
		s.logger.Warn("reset code delivery failed",
			zap.Int64("account_id", account.ID),
			zap.Error(err),
		)
		delivered = false
	}

	event := domain.PasswordResetRequestedEvent{
		EventID:           uuid.NewString(),
		AccountID:         account.ID,
		RequestedAt:       now,
		MaskedDestination: logger.MaskEmail(account.Email),
		ExpiresAt:         now.Add(s.resetCfg.TTL),
		Delivered:         delivered,
	}
	if err := s.publisher.PublishPasswordResetRequested(ctx, event); err != nil {
		s.logger.Warn("publish reset requested event failed", zap.Int64("account_id", account.ID), zap.Error(err))
	}

	s.logger.Info("password reset requested",
		zap.Int64("account_id", account.ID),
		zap.Int64("request_id", requestID),
		zap.String("ip", logger.MaskIP(sourceIP)),
		zap.Bool("delivered", delivered),
	)

	return delivered, nil
}

// Redeem exchanges a valid reset code for a new password. Wrong code, wrong
// email, expiry, and prior use all surface as the same error. The used-flag
// flip and password update are one atomic unit in the store.
func (s *ResetService) Redeem(ctx context.Context, emailAddr, code, candidate, confirm string) error {
	account, err := s.accounts.GetByEmail(ctx, domain.KindUser, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetCodeInvalid
		}
		return fmt.Errorf("fetch account by email: %w", err)
	}

	request, err := s.resets.FindActive(ctx, account.ID, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetCodeInvalid
		}
		return fmt.Errorf("find reset request: %w", err)
	}

	now := s.now().UTC()
	if now.After(request.RequestedAt.Add(s.resetCfg.TTL)) {
		return ErrResetCodeInvalid
	}

	policy, err := s.passwords.EffectivePolicyFor(ctx, account)
	if err != nil {
		return err
	}

	violations, err := s.passwords.Validate(ctx, account, policy, candidate, confirm, ValidateOptions{
		SkipReuseHistory: !s.resetCfg.EnforceReuseHistory,
	})
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return &PolicyViolationError{Violations: violations}
	}

	hash, err := s.hasher.Hash(candidate)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.resets.Redeem(ctx, request.ID, account.ID, hash, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetCodeInvalid
		}
		return fmt.Errorf("redeem reset request: %w", err)
	}

	event := domain.PasswordChangedEvent{
		EventID:   uuid.NewString(),
		AccountID: account.ID,
		Kind:      account.Kind,
		ChangedAt: now,
		Reason:    "reset_redemption",
	}
	if err := s.publisher.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed event failed", zap.Int64("account_id", account.ID), zap.Error(err))
	}

	s.logger.Info("password reset redeemed",
		zap.Int64("account_id", account.ID),
		zap.Int64("request_id", request.ID),
	)

	return nil
}
