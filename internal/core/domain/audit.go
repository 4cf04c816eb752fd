package domain

import "time"

// MaxAttemptLoginLength bounds the login value stored on an attempt record.
const MaxAttemptLoginLength = 255

// LoginAttempt records one authentication attempt for lockout evaluation and
// audit. Rows are append-only; the subsystem never updates or deletes them.
type LoginAttempt struct {
	ID        int64
	AccountID *int64
	Login     string
	IP        string
	Surface   APISurface
	Succeeded bool
	CreatedAt time.Time
}

// TruncateAttemptLogin clips a submitted login to the stored bound.
func TruncateAttemptLogin(login string) string {
	if len(login) > MaxAttemptLoginLength {
		return login[:MaxAttemptLoginLength]
	}
	return login
}

// PasswordHistoryEntry tracks a historical password hash for reuse
// prevention. One entry is appended per password change.
type PasswordHistoryEntry struct {
	ID           int64
	AccountID    int64
	PasswordHash string
	SetAt        time.Time
}

// ResetRequestStatus is the lifecycle state of a reset request row.
type ResetRequestStatus string

const (
	ResetRequestEnabled  ResetRequestStatus = "enabled"
	ResetRequestDisabled ResetRequestStatus = "disabled"
)

// PasswordResetRequest is a one-time, time-boxed reset code issued to an
// account. The Used flag flips exactly once on redemption; expiry is
// evaluated on read, never stored.
type PasswordResetRequest struct {
	ID          int64
	AccountID   int64
	Code        string
	Used        bool
	RequestedAt time.Time
	IP          string
	Status      ResetRequestStatus
}
