package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avelko/account-iam/internal/core/domain"
)

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewErrorResponse builds the error envelope for a request.
func NewErrorResponse(_ *gin.Context, message string) ErrorResponse {
	return ErrorResponse{Error: message}
}

// ViolationResponse reports field-scoped password policy failures.
type ViolationResponse struct {
	Error      string            `json:"error"`
	Violations []FieldViolation  `json:"violations"`
}

// FieldViolation is one field-scoped message.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// LoginRequest carries credentials. Login may also be a previously issued
// token.
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password"`
}

// LoginResponse returns the issued token and its expiry.
type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   AccountResponse `json:"account"`
}

// ChangePasswordRequest carries a self-service password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	Password        string `json:"password" binding:"required"`
	Password2       string `json:"password2" binding:"required"`
}

// ResetRequestRequest asks for a reset code by email.
type ResetRequestRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetRequestResponse acknowledges a reset request.
type ResetRequestResponse struct {
	Success  bool `json:"success"`
	CodeSent bool `json:"sent"`
}

// ResetRedeemRequest exchanges a reset code for a new password.
type ResetRedeemRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Code      string `json:"code" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Password2 string `json:"password2" binding:"required"`
}

// CreateAccountRequest provisions an account.
type CreateAccountRequest struct {
	Kind      string `json:"kind" binding:"required"`
	Login     string `json:"login" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	Password2 string `json:"password2" binding:"required"`
	Status    string `json:"status"`
}

// UpdateStatusRequest transitions an account's lifecycle state.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetPasswordRequest applies an administrative password change.
type SetPasswordRequest struct {
	Password  string `json:"password" binding:"required"`
	Password2 string `json:"password2" binding:"required"`
}

// AccountResponse is the transport representation of an account.
type AccountResponse struct {
	ID                int64      `json:"id"`
	Kind              string     `json:"kind"`
	Login             string     `json:"login"`
	Email             string     `json:"email"`
	Status            string     `json:"status"`
	PasswordChangedAt time.Time  `json:"password_changed_at"`
	CreatedAt         time.Time  `json:"created_at"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
}

// NewAccountResponse maps a domain account to its transport form.
func NewAccountResponse(account domain.Account) AccountResponse {
	return AccountResponse{
		ID:                account.ID,
		Kind:              string(account.Kind),
		Login:             account.Login,
		Email:             account.Email,
		Status:            string(account.Status),
		PasswordChangedAt: account.PasswordChangedAt,
		CreatedAt:         account.CreatedAt,
		LastLogin:         account.LastLogin,
	}
}

// AccountListResponse is a page of accounts.
type AccountListResponse struct {
	Accounts []AccountResponse `json:"accounts"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// CreatePolicyRequest provisions a policy.
type CreatePolicyRequest struct {
	Name     string `json:"name" binding:"required"`
	Kind     string `json:"kind" binding:"required"`
	Priority int    `json:"priority"`

	LockoutEnabled     bool `json:"lockout_enabled"`
	MaxAttempts        int  `json:"max_attempts"`
	LoginTimeframeSecs int  `json:"login_timeframe_secs"`
	BanTimeSecs        int  `json:"ban_time_secs"`
	LockoutByIP        bool `json:"lockout_by_ip"`

	PasswordComplexity   bool `json:"password_complexity"`
	PasswordReuseHistory int  `json:"password_reuse_history"`
	PasswordResetDays    int  `json:"password_reset_days"`
}

// PolicyResponse is the transport representation of a policy.
type PolicyResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Priority int    `json:"priority"`

	LockoutEnabled     bool `json:"lockout_enabled"`
	MaxAttempts        int  `json:"max_attempts"`
	LoginTimeframeSecs int  `json:"login_timeframe_secs"`
	BanTimeSecs        int  `json:"ban_time_secs"`
	LockoutByIP        bool `json:"lockout_by_ip"`

	PasswordComplexity   bool `json:"password_complexity"`
	PasswordReuseHistory int  `json:"password_reuse_history"`
	PasswordResetDays    int  `json:"password_reset_days"`
}

// NewPolicyResponse maps a domain policy to its transport form.
func NewPolicyResponse(policy domain.Policy) PolicyResponse {
	return PolicyResponse{
		ID:                   policy.ID,
		Name:                 policy.Name,
		Kind:                 string(policy.Kind),
		Priority:             policy.Priority,
		LockoutEnabled:       policy.LockoutEnabled,
		MaxAttempts:          policy.MaxAttempts,
		LoginTimeframeSecs:   int(policy.LoginTimeframe.Seconds()),
		BanTimeSecs:          int(policy.BanTime.Seconds()),
		LockoutByIP:          policy.LockoutByIP,
		PasswordComplexity:   policy.PasswordComplexity,
		PasswordReuseHistory: policy.PasswordReuseHistory,
		PasswordResetDays:    policy.PasswordResetDays,
	}
}

// AssignPolicyRequest attaches a policy to an account.
type AssignPolicyRequest struct {
	AccountID int64 `json:"account_id" binding:"required"`
}
