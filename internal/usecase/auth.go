package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/core/port"
	"github.com/avelko/account-iam/internal/infra/logger"
	"github.com/avelko/account-iam/internal/infra/security"
	"github.com/avelko/account-iam/internal/repository"
)

// Authenticator resolves an identifier plus secret into an authenticated
// principal. The identifier may be a previously issued token or a login name;
// tokens are tried first.
type Authenticator struct {
	accounts port.AccountRepository
	attempts port.AttemptRepository
	hasher   port.PasswordHasher
	codec    *security.TokenCodec
	lockout  *LockoutEvaluator
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(
	accounts port.AccountRepository,
	attempts port.AttemptRepository,
	hasher port.PasswordHasher,
	codec *security.TokenCodec,
	lockout *LockoutEvaluator,
	log *zap.Logger,
) *Authenticator {
	return &Authenticator{
		accounts: accounts,
		attempts: attempts,
		hasher:   hasher,
		codec:    codec,
		lockout:  lockout,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock overrides the authenticator clock, for tests.
func (a *Authenticator) WithClock(clock func() time.Time) *Authenticator {
	if clock != nil {
		a.now = clock
	}
	return a
}

// Authenticate verifies the identifier and secret for the given surface.
//
// The identifier is first tried as a token; a valid token of the surface's
// principal class that resolves to a live account short-circuits the
// password path and records no attempt. Anything else is treated as a login
// name: a locked name fails without recording an attempt, every other
// password-path call appends exactly one attempt row before returning.
func (a *Authenticator) Authenticate(ctx context.Context, identifier, secret, sourceIP string, surface domain.APISurface) (*domain.Account, error) {
	kind := surface.Kind()

	if payload, ok := a.codec.Verify(identifier); ok && payload.Kind == kind {
		account, err := a.accounts.GetByID(ctx, payload.ID)
		if err == nil && account.Status == domain.AccountStatusEnabled {
			return account, nil
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("resolve token principal: %w", err)
		}
		// Stale token payload: fall through to password auth.
	}

	login := domain.FoldLogin(identifier)

	locked, err := a.lockout.IsLocked(ctx, kind, login, sourceIP)
	if err != nil {
		return nil, err
	}
	if locked {
		a.logger.Info("authentication short-circuited by lockout",
			zap.String("surface", string(surface)),
			zap.String("ip", logger.MaskIP(sourceIP)),
		)
		return nil, ErrAccountLocked
	}

	account, err := a.accounts.GetByLogin(ctx, kind, login)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("fetch account by login: %w", err)
	}

	succeeded := false
	var accountID *int64
	if account != nil {
		accountID = &account.ID
		match, verr := a.hasher.Verify(secret, account.PasswordHash)
		if verr != nil {
			a.logger.Warn("password hash verification error", zap.Error(verr))
		}
		succeeded = match && verr == nil
	}

	attempt := domain.LoginAttempt{
		AccountID: accountID,
		Login:     login,
		IP:        sourceIP,
		Surface:   surface,
		Succeeded: succeeded,
		CreatedAt: a.now().UTC(),
	}
	if err := a.attempts.Append(ctx, attempt); err != nil {
		return nil, fmt.Errorf("append login attempt: %w", err)
	}

	if !succeeded {
		return nil, ErrBadCredentials
	}

	if err := a.accounts.UpdateLastLogin(ctx, account.ID, attempt.CreatedAt); err != nil {
		a.logger.Warn("update last login failed", zap.Int64("account_id", account.ID), zap.Error(err))
	}

	return account, nil
}

// IssueToken signs a token for an authenticated account.
func (a *Authenticator) IssueToken(account *domain.Account, ttl time.Duration) (string, error) {
	return a.codec.Issue(account.ID, account.Kind, ttl)
}

// VerifyToken resolves a bearer token into a live account, or ErrTokenInvalid.
func (a *Authenticator) VerifyToken(ctx context.Context, token string) (*domain.Account, error) {
	payload, ok := a.codec.Verify(token)
	if !ok {
		return nil, ErrTokenInvalid
	}

	account, err := a.accounts.GetByID(ctx, payload.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("resolve token principal: %w", err)
	}

	if account.Status != domain.AccountStatusEnabled || account.Kind != payload.Kind {
		return nil, ErrTokenInvalid
	}

	return account, nil
}
