package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/infra/config"
	"github.com/avelko/account-iam/internal/infra/email"
)

func strictPolicy() domain.Policy {
	return domain.Policy{
		ID:                   1,
		Name:                 "user-strict",
		Kind:                 domain.KindUser,
		Priority:             10,
		PasswordComplexity:   true,
		PasswordReuseHistory: 3,
		PasswordResetDays:    90,
	}
}

type passwordFixture struct {
	service   *PasswordService
	accounts  *stubAccountRepo
	history   *stubHistoryRepo
	policies  *stubPolicyRepo
	publisher *stubPublisher
	notifier  *stubNotifier
}

func newPasswordFixture(t *testing.T, account domain.Account, policy *domain.Policy) *passwordFixture {
	t.Helper()

	accounts := newStubAccountRepo(account)
	history := &stubHistoryRepo{}
	policies := newStubPolicyRepo()
	if policy != nil {
		policies.policies[policy.ID] = *policy
		policies.assign(policy.ID, account.ID)
	}
	publisher := &stubPublisher{}
	notifier := &stubNotifier{delivered: true}

	service := NewPasswordService(
		accounts, history, policies, plainHasher{}, publisher, notifier,
		config.PasswordSettings{}, zaptest.NewLogger(t),
	)

	return &passwordFixture{
		service:   service,
		accounts:  accounts,
		history:   history,
		policies:  policies,
		publisher: publisher,
		notifier:  notifier,
	}
}

func TestValidateComplexityRule(t *testing.T) {
	policy := strictPolicy()
	account := enabledUser(1, "jdoe")
	fix := newPasswordFixture(t, account, &policy)

	cases := []struct {
		name      string
		candidate string
		wantOK    bool
	}{
		{"upper lower digit symbol", "Testpass1!", true},
		{"lowercase only", "testpass", false},
		{"upper and digit no lower", "TESTPASS1", false},
		{"lower upper digit", "Testpass1", true},
		{"lower digit symbol", "testpass1!", true},
		{"too short", "Tp1!", false},
		{"too long", strings.Repeat("Aa1!", 11), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			violations, err := fix.service.Validate(context.Background(), &account, &policy, tc.candidate, tc.candidate, ValidateOptions{})
			if err != nil {
				t.Fatalf("Validate returned error: %v", err)
			}
			if ok := len(violations) == 0; ok != tc.wantOK {
				t.Fatalf("candidate %q: expected ok=%v, got violations %v", tc.candidate, tc.wantOK, violations)
			}
		})
	}
}

func TestValidateNoPolicySkipsComplexity(t *testing.T) {
	account := enabledUser(1, "jdoe")
	fix := newPasswordFixture(t, account, nil)

	violations, err := fix.service.Validate(context.Background(), &account, nil, "weak", "weak", ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violations without a policy, got %v", violations)
	}
}

func TestValidateConfirmationMismatch(t *testing.T) {
	account := enabledUser(1, "jdoe")
	fix := newPasswordFixture(t, account, nil)

	violations, err := fix.service.Validate(context.Background(), &account, nil, "Testpass1!", "Testpass2!", ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if len(violations) != 1 || violations[0].Field != "password2" {
		t.Fatalf("expected a password2 violation, got %v", violations)
	}
}

func TestValidateReuseHistory(t *testing.T) {
	policy := strictPolicy()
	account := enabledUser(1, "jdoe")
	fix := newPasswordFixture(t, account, &policy)

	fix.history.entries = []domain.PasswordHistoryEntry{
		{ID: 1, AccountID: 1, PasswordHash: "hash:Oldpass1!", SetAt: lockoutBase.Add(-72 * time.Hour)},
		{ID: 2, AccountID: 1, PasswordHash: "hash:Oldpass2!", SetAt: lockoutBase.Add(-48 * time.Hour)},
		{ID: 3, AccountID: 1, PasswordHash: "hash:Oldpass3!", SetAt: lockoutBase.Add(-24 * time.Hour)},
	}

	violations, err := fix.service.Validate(context.Background(), &account, &policy, "Oldpass2!", "Oldpass2!", ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if len(violations) == 0 {
		t.Fatal("expected a reuse violation for a recent password")
	}

	// Matching the current password is also reuse.
	violations, err = fix.service.Validate(context.Background(), &account, &policy, "correct horse", "correct horse", ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if len(violations) == 0 {
		t.Fatal("expected a reuse violation for the current password")
	}

	// A password older than the window is acceptable again.
	fix.history.entries = append([]domain.PasswordHistoryEntry{
		{ID: 0, AccountID: 1, PasswordHash: "hash:Ancient1!", SetAt: lockoutBase.Add(-96 * time.Hour)},
	}, fix.history.entries...)

	violations, err = fix.service.Validate(context.Background(), &account, &policy, "Ancient1!", "Ancient1!", ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violation for a password outside the window, got %v", violations)
	}
}

func TestChangeRequiresCurrentPassword(t *testing.T) {
	policy := strictPolicy()
	account := enabledUser(1, "jdoe")
	fix := newPasswordFixture(t, account, &policy)

	err := fix.service.Change(context.Background(), &account, "not the password", "Newpass1!", "Newpass1!")
	if !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if len(fix.accounts.setPasswords) != 0 {
		t.Fatal("expected no password write after a failed current-password check")
	}
}

func TestChangeAppliesAtomically(t *testing.T) {
	policy := strictPolicy()
	account := enabledUser(1, "jdoe")
	fix := newPasswordFixture(t, account, &policy)

	changedAt := lockoutBase.Add(time.Hour)
	fix.service.WithClock(func() time.Time { return changedAt })

	if err := fix.service.Change(context.Background(), &account, "correct horse", "Newpass1!", "Newpass1!"); err != nil {
		t.Fatalf("Change returned error: %v", err)
	}

	if len(fix.accounts.setPasswords) != 1 {
		t.Fatalf("expected one SetPassword call, got %d", len(fix.accounts.setPasswords))
	}
	call := fix.accounts.setPasswords[0]
	if call.hash != "hash:Newpass1!" {
		t.Fatalf("unexpected stored hash %q", call.hash)
	}
	if !call.changedAt.Equal(changedAt) {
		t.Fatalf("expected changedAt %v, got %v", changedAt, call.changedAt)
	}

	if len(fix.publisher.passwordChanged) != 1 {
		t.Fatal("expected a password changed event")
	}
	if fix.publisher.passwordChanged[0].Reason != "self_service_change" {
		t.Fatalf("unexpected event reason %q", fix.publisher.passwordChanged[0].Reason)
	}
	if len(fix.notifier.sent) != 1 || fix.notifier.sent[0].template != email.TemplatePasswordChanged {
		t.Fatal("expected a password changed notification")
	}
}

func TestChangeRejectsPolicyViolations(t *testing.T) {
	policy := strictPolicy()
	account := enabledUser(1, "jdoe")
	fix := newPasswordFixture(t, account, &policy)

	err := fix.service.Change(context.Background(), &account, "correct horse", "weak", "weak")
	pv, ok := AsPolicyViolation(err)
	if !ok {
		t.Fatalf("expected a policy violation error, got %v", err)
	}
	if len(pv.Violations) == 0 {
		t.Fatal("expected at least one violation")
	}
	if len(fix.accounts.setPasswords) != 0 {
		t.Fatal("expected no password write after a policy violation")
	}
}

func TestExpired(t *testing.T) {
	policy := strictPolicy()
	account := enabledUser(1, "jdoe")
	account.PasswordChangedAt = lockoutBase
	fix := newPasswordFixture(t, account, &policy)

	fix.service.WithClock(func() time.Time { return lockoutBase.AddDate(0, 0, 91) })
	expired, err := fix.service.Expired(context.Background(), &account)
	if err != nil {
		t.Fatalf("Expired returned error: %v", err)
	}
	if !expired {
		t.Fatal("expected expired after 91 days with a 90 day policy")
	}

	fix.service.WithClock(func() time.Time { return lockoutBase.AddDate(0, 0, 89) })
	expired, err = fix.service.Expired(context.Background(), &account)
	if err != nil {
		t.Fatalf("Expired returned error: %v", err)
	}
	if expired {
		t.Fatal("expected not expired at 89 days")
	}
}

func TestExpiredNoPolicy(t *testing.T) {
	account := enabledUser(1, "jdoe")
	fix := newPasswordFixture(t, account, nil)

	expired, err := fix.service.Expired(context.Background(), &account)
	if err != nil {
		t.Fatalf("Expired returned error: %v", err)
	}
	if expired {
		t.Fatal("expected not expired without a policy")
	}
}
