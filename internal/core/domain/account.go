package domain

import (
	"strings"
	"time"
)

// AccountKind discriminates the authenticatable principal classes.
type AccountKind string

const (
	KindAdministrator AccountKind = "administrator"
	KindUser          AccountKind = "user"
)

// Valid reports whether the kind is one of the known principal classes.
func (k AccountKind) Valid() bool {
	return k == KindAdministrator || k == KindUser
}

// AccountStatus enumerates account lifecycle states.
type AccountStatus string

const (
	AccountStatusEnabled  AccountStatus = "enabled"
	AccountStatusDisabled AccountStatus = "disabled"
	AccountStatusArchived AccountStatus = "archived"
	AccountStatusPending  AccountStatus = "pending"
	AccountStatusDeleted  AccountStatus = "deleted"
)

// Account mirrors the persisted representation of an authenticatable
// principal. Administrators and users are structurally identical for
// authentication purposes and differ only by Kind.
type Account struct {
	ID                int64
	Kind              AccountKind
	Login             string
	Email             string
	PasswordHash      string
	PasswordChangedAt time.Time
	Status            AccountStatus
	CreatedAt         time.Time
	LastLogin         *time.Time
}

// Sanitized returns a copy safe to hand back to transport layers.
func (a Account) Sanitized() Account {
	a.PasswordHash = ""
	return a
}

// FoldLogin normalizes a login name or email for case-insensitive lookup.
func FoldLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// APISurface tags which API surface an authentication attempt came through.
type APISurface string

const (
	SurfaceAdmin  APISurface = "admin"
	SurfacePublic APISurface = "public"
)

// Kind returns the principal class a surface authenticates.
func (s APISurface) Kind() AccountKind {
	if s == SurfaceAdmin {
		return KindAdministrator
	}
	return KindUser
}
