package usecase

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAccountLocked indicates the login name is inside an active lockout
	// window. No attempt is recorded for this outcome.
	ErrAccountLocked = errors.New("account locked")
	// ErrBadCredentials covers both unknown login names and wrong passwords.
	// The two cases are intentionally indistinguishable.
	ErrBadCredentials = errors.New("bad credentials")
	// ErrTokenInvalid covers expired and malformed tokens alike.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrResetCodeInvalid covers wrong code, wrong email, expired, and
	// already-used reset codes. Indistinguishable to the caller.
	ErrResetCodeInvalid = errors.New("reset code invalid")
	// ErrPasswordExpired gates already-authenticated requests whose password
	// has outlived the policy maximum age. Never surfaced at login.
	ErrPasswordExpired = errors.New("password expired")
	// ErrEmailNotFound is returned when a reset is requested for an unknown
	// email address.
	ErrEmailNotFound = errors.New("email not found")
	// ErrInvalidInput reports a malformed management request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound reports a missing account or policy on management calls.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a uniqueness violation on create calls.
	ErrConflict = errors.New("already exists")
	// ErrTooManyRequests reports a tripped sliding-window rate limit.
	ErrTooManyRequests = errors.New("too many requests")
)

// PolicyViolation is one field-scoped password rule failure.
type PolicyViolation struct {
	Field   string
	Message string
}

// PolicyViolationError aggregates the violations found while validating a
// candidate password.
type PolicyViolationError struct {
	Violations []PolicyViolation
}

func (e *PolicyViolationError) Error() string {
	if len(e.Violations) == 0 {
		return "policy violation"
	}

	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return strings.Join(parts, "; ")
}

// AsPolicyViolation unwraps err into a PolicyViolationError if it is one.
func AsPolicyViolation(err error) (*PolicyViolationError, bool) {
	var pv *PolicyViolationError
	if errors.As(err, &pv) {
		return pv, true
	}
	return nil, false
}
