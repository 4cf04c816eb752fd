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
	"github.com/avelko/account-iam/internal/repository"
)

// AccountService covers administrative account management.
type AccountService struct {
	accounts  port.AccountRepository
	passwords *PasswordService
	hasher    port.PasswordHasher
	publisher port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewAccountService constructs an AccountService.
func NewAccountService(
	accounts port.AccountRepository,
	passwords *PasswordService,
	hasher port.PasswordHasher,
	publisher port.EventPublisher,
	log *zap.Logger,
) *AccountService {
	return &AccountService{
		accounts:  accounts,
		passwords: passwords,
		hasher:    hasher,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the service clock, for tests.
func (s *AccountService) WithClock(clock func() time.Time) *AccountService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// CreateAccountInput carries the fields needed to provision an account.
type CreateAccountInput struct {
	Kind     domain.AccountKind
	Login    string
	Email    string
	Password string
	Confirm  string
	Status   domain.AccountStatus
}

// Create provisions a new account. The login must be unique within its
// principal class; a policy is not required at creation time.
func (s *AccountService) Create(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if !input.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown principal kind %q", ErrInvalidInput, input.Kind)
	}

	if _, err := s.accounts.GetByLogin(ctx, input.Kind, input.Login); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check login uniqueness: %w", err)
	}

	if input.Password != input.Confirm {
		return nil, &PolicyViolationError{Violations: []PolicyViolation{{
			Field:   "password2",
			Message: "passwords must match",
		}}}
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	status := input.Status
	if status == "" {
		status = domain.AccountStatusEnabled
	}

	now := s.now().UTC()
	account := domain.Account{
		Kind:              input.Kind,
		Login:             domain.FoldLogin(input.Login),
		Email:             domain.FoldLogin(input.Email),
		PasswordHash:      hash,
		PasswordChangedAt: now,
		Status:            status,
		CreatedAt:         now,
	}

	id, err := s.accounts.Create(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	account.ID = id

	s.logger.Info("account created",
		zap.Int64("account_id", id),
		zap.String("kind", string(account.Kind)),
	)

	return &account, nil
}

// Get fetches an account by id.
func (s *AccountService) Get(ctx context.Context, id int64) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch account: %w", err)
	}
	return account, nil
}

// List returns a page of accounts plus the unfiltered total for the filter.
func (s *AccountService) List(ctx context.Context, filter port.AccountFilter) ([]domain.Account, int, error) {
	accounts, err := s.accounts.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	total, err := s.accounts.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	return accounts, total, nil
}

// UpdateStatus transitions an account's lifecycle state and publishes the
// change.
func (s *AccountService) UpdateStatus(ctx context.Context, id int64, status domain.AccountStatus) error {
	account, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.accounts.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update account status: %w", err)
	}

	event := domain.AccountStatusChangedEvent{
		EventID:   uuid.NewString(),
		AccountID: id,
		Kind:      account.Kind,
		Status:    status,
		ChangedAt: s.now().UTC(),
	}
	if err := s.publisher.PublishAccountStatusChanged(ctx, event); err != nil {
		s.logger.Warn("publish status changed event failed", zap.Int64("account_id", id), zap.Error(err))
	}

	return nil
}

// SetPassword applies an administrative password change.
func (s *AccountService) SetPassword(ctx context.Context, id int64, candidate, confirm string) error {
	account, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.passwords.Set(ctx, account, candidate, confirm)
}
