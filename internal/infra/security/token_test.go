package security

import (
	"strings"
	"testing"
	"time"

	"github.com/avelko/account-iam/internal/core/domain"
)

var tokenBase = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCodec(t *testing.T) *TokenCodec {
	t.Helper()

	keys, err := NewEphemeralKeyProvider("test")
	if err != nil {
		t.Fatalf("create key provider: %v", err)
	}
	return NewTokenCodec(keys, "test", "account-iam-test", 30*time.Minute).
		WithClock(func() time.Time { return tokenBase })
}

func TestIssueVerifyRoundtrip(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue(42, domain.KindUser, time.Hour)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	payload, ok := codec.Verify(token)
	if !ok {
		t.Fatal("expected the token to verify")
	}
	if payload.ID != 42 || payload.Kind != domain.KindUser {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestIssueRejectsInvalidInput(t *testing.T) {
	codec := newTestCodec(t)

	if _, err := codec.Issue(0, domain.KindUser, time.Hour); err == nil {
		t.Fatal("expected an error for a zero account id")
	}
	if _, err := codec.Issue(42, domain.AccountKind("robot"), time.Hour); err == nil {
		t.Fatal("expected an error for an unknown kind")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue(42, domain.KindAdministrator, 30*time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	codec.WithClock(func() time.Time { return tokenBase.Add(31 * time.Minute) })
	if _, ok := codec.Verify(token); ok {
		t.Fatal("expected verification to fail after expiry")
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue(42, domain.KindUser, time.Hour)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	// Flip a character in the signature segment.
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected three token segments, got %d", len(parts))
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, ok := codec.Verify(tampered); ok {
		t.Fatal("expected verification to fail on a tampered signature")
	}
}

func TestVerifyGarbage(t *testing.T) {
	codec := newTestCodec(t)

	for _, token := range []string{"", "   ", "not-a-token", "a.b.c"} {
		if _, ok := codec.Verify(token); ok {
			t.Fatalf("expected verification to fail for %q", token)
		}
	}
}

func TestVerifyWrongKey(t *testing.T) {
	codec := newTestCodec(t)
	other := newTestCodec(t)

	token, err := other.Issue(42, domain.KindUser, time.Hour)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, ok := codec.Verify(token); ok {
		t.Fatal("expected verification to fail under a different key pair")
	}
}
