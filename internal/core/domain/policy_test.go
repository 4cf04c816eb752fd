package domain

import (
	"testing"
	"time"
)

func TestEffectivePolicy(t *testing.T) {
	if got := EffectivePolicy(nil); got != nil {
		t.Fatalf("expected nil for an empty set, got %+v", got)
	}

	policies := []Policy{
		{ID: 1, Name: "fallback", Priority: 50},
		{ID: 2, Name: "primary", Priority: 10},
		{ID: 3, Name: "extra", Priority: 30},
	}
	if got := EffectivePolicy(policies); got == nil || got.ID != 2 {
		t.Fatalf("expected the lowest priority policy, got %+v", got)
	}

	// Priority ties break on name.
	tied := []Policy{
		{ID: 1, Name: "bravo", Priority: 10},
		{ID: 2, Name: "alpha", Priority: 10},
	}
	if got := EffectivePolicy(tied); got == nil || got.Name != "alpha" {
		t.Fatalf("expected the name tiebreak, got %+v", got)
	}
}

func TestPasswordExpired(t *testing.T) {
	changed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	account := Account{PasswordChangedAt: changed}
	policy := &Policy{PasswordResetDays: 90}

	if policy.PasswordExpired(account, changed.AddDate(0, 0, 89)) {
		t.Fatal("expected not expired before the deadline")
	}
	if !policy.PasswordExpired(account, changed.AddDate(0, 0, 91)) {
		t.Fatal("expected expired after the deadline")
	}

	// Zero reset days and a missing policy both disable expiry.
	none := &Policy{}
	if none.PasswordExpired(account, changed.AddDate(10, 0, 0)) {
		t.Fatal("expected zero reset days to disable expiry")
	}
	var nilPolicy *Policy
	if nilPolicy.PasswordExpired(account, changed.AddDate(10, 0, 0)) {
		t.Fatal("expected a nil policy to disable expiry")
	}
}

func TestFoldLogin(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"JDoe", "jdoe"},
		{"  JDoe ", "jdoe"},
		{"JDoe@Example.COM", "jdoe@example.com"},
		{"already.lowercase", "already.lowercase"},
	}
	for _, tc := range cases {
		if got := FoldLogin(tc.in); got != tc.want {
			t.Errorf("FoldLogin(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSurfaceKind(t *testing.T) {
	if SurfaceAdmin.Kind() != KindAdministrator {
		t.Fatal("expected the admin surface to authenticate administrators")
	}
	if SurfacePublic.Kind() != KindUser {
		t.Fatal("expected the public surface to authenticate users")
	}
}
