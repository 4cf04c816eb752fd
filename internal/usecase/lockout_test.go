package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/avelko/account-iam/internal/core/domain"
)

var lockoutBase = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func adminLockoutPolicy() domain.Policy {
	return domain.Policy{
		ID:             1,
		Name:           "admin-default",
		Kind:           domain.KindAdministrator,
		Priority:       10,
		LockoutEnabled: true,
		MaxAttempts:    5,
		LoginTimeframe: 300 * time.Second,
		BanTime:        1800 * time.Second,
	}
}

func failedAttemptsAt(login, ip string, offsets ...time.Duration) []domain.LoginAttempt {
	attempts := make([]domain.LoginAttempt, 0, len(offsets))
	for _, offset := range offsets {
		attempts = append(attempts, domain.LoginAttempt{
			Login:     login,
			IP:        ip,
			Surface:   domain.SurfaceAdmin,
			Succeeded: false,
			CreatedAt: lockoutBase.Add(offset),
		})
	}
	return attempts
}

func newLockoutFixture(policy domain.Policy, attempts []domain.LoginAttempt, at time.Time) *LockoutEvaluator {
	policies := newStubPolicyRepo(policy)
	attemptRepo := &stubAttemptRepo{attempts: attempts}
	return NewLockoutEvaluator(policies, attemptRepo).WithClock(func() time.Time { return at })
}

func TestIsLockedDisabledPolicy(t *testing.T) {
	policy := adminLockoutPolicy()
	policy.LockoutEnabled = false

	attempts := failedAttemptsAt("admin1", "10.0.0.1", 0, 10*time.Second, 20*time.Second, 30*time.Second, 40*time.Second)
	eval := newLockoutFixture(policy, attempts, lockoutBase.Add(100*time.Second))

	locked, err := eval.IsLocked(context.Background(), domain.KindAdministrator, "admin1", "10.0.0.1")
	if err != nil {
		t.Fatalf("IsLocked returned error: %v", err)
	}
	if locked {
		t.Fatal("expected unlocked when the lockout flag is off")
	}
}

func TestIsLockedNoPolicyForKind(t *testing.T) {
	eval := NewLockoutEvaluator(newStubPolicyRepo(), &stubAttemptRepo{})

	locked, err := eval.IsLocked(context.Background(), domain.KindAdministrator, "admin1", "10.0.0.1")
	if err != nil {
		t.Fatalf("IsLocked returned error: %v", err)
	}
	if locked {
		t.Fatal("expected unlocked when no policy governs the class")
	}
}

func TestIsLockedInsufficientHistory(t *testing.T) {
	attempts := failedAttemptsAt("admin1", "10.0.0.1", 0, 10*time.Second, 20*time.Second, 30*time.Second)
	eval := newLockoutFixture(adminLockoutPolicy(), attempts, lockoutBase.Add(100*time.Second))

	locked, err := eval.IsLocked(context.Background(), domain.KindAdministrator, "admin1", "10.0.0.1")
	if err != nil {
		t.Fatalf("IsLocked returned error: %v", err)
	}
	if locked {
		t.Fatal("expected unlocked with fewer than max attempts recorded")
	}
}

func TestIsLockedBurstOfFailures(t *testing.T) {
	attempts := failedAttemptsAt("admin1", "10.0.0.1", 0, 10*time.Second, 20*time.Second, 30*time.Second, 40*time.Second)

	eval := newLockoutFixture(adminLockoutPolicy(), attempts, lockoutBase.Add(100*time.Second))
	locked, err := eval.IsLocked(context.Background(), domain.KindAdministrator, "admin1", "10.0.0.1")
	if err != nil {
		t.Fatalf("IsLocked returned error: %v", err)
	}
	if !locked {
		t.Fatal("expected locked at t=100 after five failures inside the timeframe")
	}

	// Once the ban counted from the newest failure has elapsed the lock
	// clears without any new attempts being recorded.
	eval = newLockoutFixture(adminLockoutPolicy(), attempts, lockoutBase.Add(1841*time.Second))
	locked, err = eval.IsLocked(context.Background(), domain.KindAdministrator, "admin1", "10.0.0.1")
	if err != nil {
		t.Fatalf("IsLocked returned error: %v", err)
	}
	if locked {
		t.Fatal("expected unlocked at t=1841 once ban_time has elapsed")
	}
}

func TestIsLockedSuccessClearsWindow(t *testing.T) {
	attempts := failedAttemptsAt("admin1", "10.0.0.1", 0, 10*time.Second, 20*time.Second, 30*time.Second, 40*time.Second)
	attempts[2].Succeeded = true

	eval := newLockoutFixture(adminLockoutPolicy(), attempts, lockoutBase.Add(100*time.Second))
	locked, err := eval.IsLocked(context.Background(), domain.KindAdministrator, "admin1", "10.0.0.1")
	if err != nil {
		t.Fatalf("IsLocked returned error: %v", err)
	}
	if locked {
		t.Fatal("expected unlocked with a success interleaved in the window")
	}
}

func TestIsLockedSpreadOutFailures(t *testing.T) {
	attempts := failedAttemptsAt("admin1", "10.0.0.1",
		0, 100*time.Second, 200*time.Second, 300*time.Second, 400*time.Second)

	eval := newLockoutFixture(adminLockoutPolicy(), attempts, lockoutBase.Add(420*time.Second))
	locked, err := eval.IsLocked(context.Background(), domain.KindAdministrator, "admin1", "10.0.0.1")
	if err != nil {
		t.Fatalf("IsLocked returned error: %v", err)
	}
	if locked {
		t.Fatal("expected unlocked when the window spans more than login_timeframe")
	}
}

func TestIsLockedScopedByIP(t *testing.T) {
	policy := adminLockoutPolicy()
	policy.LockoutByIP = true

	attempts := failedAttemptsAt("admin1", "10.0.0.1", 0, 10*time.Second, 20*time.Second, 30*time.Second, 40*time.Second)

	eval := newLockoutFixture(policy, attempts, lockoutBase.Add(100*time.Second))

	locked, err := eval.IsLocked(context.Background(), domain.KindAdministrator, "admin1", "10.0.0.1")
	if err != nil {
		t.Fatalf("IsLocked returned error: %v", err)
	}
	if !locked {
		t.Fatal("expected locked for the offending IP")
	}

	locked, err = eval.IsLocked(context.Background(), domain.KindAdministrator, "admin1", "192.168.0.7")
	if err != nil {
		t.Fatalf("IsLocked returned error: %v", err)
	}
	if locked {
		t.Fatal("expected unlocked for a different IP when lockout is IP scoped")
	}
}

func TestIsLockedOnlyNewestWindowCounts(t *testing.T) {
	// Five old failures followed by a recent success: the success sits in
	// the newest five rows and clears eligibility.
	attempts := failedAttemptsAt("admin1", "10.0.0.1", 0, 10*time.Second, 20*time.Second, 30*time.Second, 40*time.Second)
	attempts = append(attempts, domain.LoginAttempt{
		Login:     "admin1",
		IP:        "10.0.0.1",
		Surface:   domain.SurfaceAdmin,
		Succeeded: true,
		CreatedAt: lockoutBase.Add(50 * time.Second),
	})

	eval := newLockoutFixture(adminLockoutPolicy(), attempts, lockoutBase.Add(60*time.Second))
	locked, err := eval.IsLocked(context.Background(), domain.KindAdministrator, "admin1", "10.0.0.1")
	if err != nil {
		t.Fatalf("IsLocked returned error: %v", err)
	}
	if locked {
		t.Fatal("expected unlocked after a fresh successful login")
	}
}
