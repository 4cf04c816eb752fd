package domain

import "time"

// Policy bundles the lockout and password rules historically attached to a
// role. A policy governs the principal class named by Kind.
type Policy struct {
	ID       int64
	Name     string
	Kind     AccountKind
	Priority int

	LockoutEnabled bool
	MaxAttempts    int
	LoginTimeframe time.Duration
	BanTime        time.Duration
	LockoutByIP    bool

	PasswordComplexity   bool
	PasswordReuseHistory int
	PasswordResetDays    int
}

// EffectivePolicy picks the single policy governing an account that holds
// more than one. The lowest Priority value wins; ties break on name so the
// result is deterministic. Returns nil for an empty set.
func EffectivePolicy(policies []Policy) *Policy {
	var best *Policy
	for i := range policies {
		p := &policies[i]
		if best == nil {
			best = p
			continue
		}
		if p.Priority < best.Priority || (p.Priority == best.Priority && p.Name < best.Name) {
			best = p
		}
	}
	if best == nil {
		return nil
	}
	picked := *best
	return &picked
}

// PasswordExpired reports whether the account's password has outlived the
// policy's maximum age. A zero PasswordResetDays disables expiry.
func (p *Policy) PasswordExpired(account Account, now time.Time) bool {
	if p == nil || p.PasswordResetDays <= 0 {
		return false
	}
	deadline := account.PasswordChangedAt.AddDate(0, 0, p.PasswordResetDays)
	return now.After(deadline)
}
