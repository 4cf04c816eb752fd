package domain

import "time"

// PasswordChangedEvent is published after a password change or reset is
// applied.
type PasswordChangedEvent struct {
	EventID   string         `json:"event_id"`
	AccountID int64          `json:"account_id"`
	Kind      AccountKind    `json:"kind"`
	ChangedAt time.Time      `json:"changed_at"`
	Reason    string         `json:"reason"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// PasswordResetRequestedEvent is published when a reset code is issued.
type PasswordResetRequestedEvent struct {
	EventID           string         `json:"event_id"`
	AccountID         int64          `json:"account_id"`
	RequestedAt       time.Time      `json:"requested_at"`
	MaskedDestination string         `json:"masked_destination"`
	ExpiresAt         time.Time      `json:"expires_at"`
	Delivered         bool           `json:"delivered"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// AccountStatusChangedEvent is published when an account transitions
// lifecycle state.
type AccountStatusChangedEvent struct {
	EventID   string        `json:"event_id"`
	AccountID int64         `json:"account_id"`
	Kind      AccountKind   `json:"kind"`
	Status    AccountStatus `json:"status"`
	ChangedAt time.Time     `json:"changed_at"`
}
