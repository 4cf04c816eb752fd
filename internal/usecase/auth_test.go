package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/infra/security"
)

func testCodec(t *testing.T) *security.TokenCodec {
	t.Helper()

	keys, err := security.NewEphemeralKeyProvider("test")
	if err != nil {
		t.Fatalf("create key provider: %v", err)
	}
	return security.NewTokenCodec(keys, "test", "account-iam-test", 30*time.Minute)
}

func newAuthFixture(t *testing.T, accounts *stubAccountRepo, attempts *stubAttemptRepo, policies *stubPolicyRepo) *Authenticator {
	t.Helper()

	lockout := NewLockoutEvaluator(policies, attempts)
	return NewAuthenticator(accounts, attempts, plainHasher{}, testCodec(t), lockout, zaptest.NewLogger(t))
}

func enabledUser(id int64, login string) domain.Account {
	return domain.Account{
		ID:                id,
		Kind:              domain.KindUser,
		Login:             login,
		Email:             login + "@example.com",
		PasswordHash:      "hash:correct horse",
		PasswordChangedAt: lockoutBase,
		Status:            domain.AccountStatusEnabled,
		CreatedAt:         lockoutBase,
	}
}

func TestAuthenticateSuccessRecordsOneAttempt(t *testing.T) {
	accounts := newStubAccountRepo(enabledUser(7, "jdoe"))
	attempts := &stubAttemptRepo{}
	auth := newAuthFixture(t, accounts, attempts, newStubPolicyRepo())

	account, err := auth.Authenticate(context.Background(), "jdoe", "correct horse", "10.0.0.1", domain.SurfacePublic)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if account.ID != 7 {
		t.Fatalf("expected account 7, got %d", account.ID)
	}

	if len(attempts.attempts) != 1 {
		t.Fatalf("expected exactly one attempt row, got %d", len(attempts.attempts))
	}
	attempt := attempts.attempts[0]
	if !attempt.Succeeded {
		t.Fatal("expected a successful attempt row")
	}
	if attempt.AccountID == nil || *attempt.AccountID != 7 {
		t.Fatal("expected the attempt bound to account 7")
	}
	if len(accounts.lastLogins) != 1 {
		t.Fatal("expected last login stamped once")
	}
}

func TestAuthenticateWrongPasswordRecordsFailure(t *testing.T) {
	accounts := newStubAccountRepo(enabledUser(7, "jdoe"))
	attempts := &stubAttemptRepo{}
	auth := newAuthFixture(t, accounts, attempts, newStubPolicyRepo())

	_, err := auth.Authenticate(context.Background(), "jdoe", "wrong", "10.0.0.1", domain.SurfacePublic)
	if !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}

	if len(attempts.attempts) != 1 {
		t.Fatalf("expected exactly one attempt row, got %d", len(attempts.attempts))
	}
	if attempts.attempts[0].Succeeded {
		t.Fatal("expected a failed attempt row")
	}
}

func TestAuthenticateUnknownLoginIndistinguishable(t *testing.T) {
	accounts := newStubAccountRepo()
	attempts := &stubAttemptRepo{}
	auth := newAuthFixture(t, accounts, attempts, newStubPolicyRepo())

	_, err := auth.Authenticate(context.Background(), "ghost", "whatever", "10.0.0.1", domain.SurfacePublic)
	if !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials for unknown login, got %v", err)
	}

	// Unknown logins still append an attempt row with a null account id.
	if len(attempts.attempts) != 1 {
		t.Fatalf("expected exactly one attempt row, got %d", len(attempts.attempts))
	}
	if attempts.attempts[0].AccountID != nil {
		t.Fatal("expected a null account id on the attempt")
	}
}

func TestAuthenticateLockedSkipsAttemptRow(t *testing.T) {
	policy := domain.Policy{
		ID:             1,
		Name:           "user-default",
		Kind:           domain.KindUser,
		Priority:       10,
		LockoutEnabled: true,
		MaxAttempts:    3,
		LoginTimeframe: 300 * time.Second,
		BanTime:        1800 * time.Second,
	}

	accounts := newStubAccountRepo(enabledUser(7, "jdoe"))
	attempts := &stubAttemptRepo{attempts: failedAttemptsAt("jdoe", "10.0.0.1", 0, 5*time.Second, 10*time.Second)}
	for i := range attempts.attempts {
		attempts.attempts[i].Surface = domain.SurfacePublic
	}

	policies := newStubPolicyRepo(policy)
	lockout := NewLockoutEvaluator(policies, attempts).
		WithClock(func() time.Time { return lockoutBase.Add(60 * time.Second) })
	auth := NewAuthenticator(accounts, attempts, plainHasher{}, testCodec(t), lockout, zaptest.NewLogger(t))

	_, err := auth.Authenticate(context.Background(), "jdoe", "correct horse", "10.0.0.1", domain.SurfacePublic)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}

	// The lockout short-circuit must not extend the window.
	if len(attempts.attempts) != 3 {
		t.Fatalf("expected no new attempt rows, got %d", len(attempts.attempts))
	}
}

func TestAuthenticateTokenPath(t *testing.T) {
	accounts := newStubAccountRepo(enabledUser(7, "jdoe"))
	attempts := &stubAttemptRepo{}
	auth := newAuthFixture(t, accounts, attempts, newStubPolicyRepo())

	token, err := auth.IssueToken(&domain.Account{ID: 7, Kind: domain.KindUser}, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}

	account, err := auth.Authenticate(context.Background(), token, "", "10.0.0.1", domain.SurfacePublic)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if account.ID != 7 {
		t.Fatalf("expected account 7, got %d", account.ID)
	}

	// Token-path authentication records no attempt.
	if len(attempts.attempts) != 0 {
		t.Fatalf("expected no attempt rows on the token path, got %d", len(attempts.attempts))
	}
}

func TestAuthenticateTokenWrongSurfaceFallsThrough(t *testing.T) {
	accounts := newStubAccountRepo(enabledUser(7, "jdoe"))
	attempts := &stubAttemptRepo{}
	auth := newAuthFixture(t, accounts, attempts, newStubPolicyRepo())

	token, err := auth.IssueToken(&domain.Account{ID: 7, Kind: domain.KindUser}, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}

	// A user token presented on the admin surface is treated as a login name.
	_, err = auth.Authenticate(context.Background(), token, "correct horse", "10.0.0.1", domain.SurfaceAdmin)
	if !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if len(attempts.attempts) != 1 {
		t.Fatalf("expected one attempt row on the fallthrough path, got %d", len(attempts.attempts))
	}
}

func TestAuthenticateStaleTokenFallsThrough(t *testing.T) {
	accounts := newStubAccountRepo(enabledUser(7, "jdoe"))
	attempts := &stubAttemptRepo{}
	auth := newAuthFixture(t, accounts, attempts, newStubPolicyRepo())

	// Token references an id that no longer resolves.
	token, err := auth.IssueToken(&domain.Account{ID: 999, Kind: domain.KindUser}, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}

	_, err = auth.Authenticate(context.Background(), token, "whatever", "10.0.0.1", domain.SurfacePublic)
	if !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if len(attempts.attempts) != 1 {
		t.Fatalf("expected one attempt row after token fallthrough, got %d", len(attempts.attempts))
	}
}

func TestVerifyTokenDisabledAccount(t *testing.T) {
	account := enabledUser(7, "jdoe")
	account.Status = domain.AccountStatusDisabled
	accounts := newStubAccountRepo(account)
	auth := newAuthFixture(t, accounts, &stubAttemptRepo{}, newStubPolicyRepo())

	token, err := auth.IssueToken(&domain.Account{ID: 7, Kind: domain.KindUser}, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}

	_, err = auth.VerifyToken(context.Background(), token)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for a disabled account, got %v", err)
	}
}
