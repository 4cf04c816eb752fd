package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avelko/account-iam/internal/transport/http/middleware"
	"github.com/avelko/account-iam/internal/usecase"
)

// PasswordHandler exposes the self-service password change and the reset
// code flow.
type PasswordHandler struct {
	passwords *usecase.PasswordService
	resets    *usecase.ResetService
}

// NewPasswordHandler constructs a PasswordHandler.
func NewPasswordHandler(passwords *usecase.PasswordService, resets *usecase.ResetService) *PasswordHandler {
	return &PasswordHandler{passwords: passwords, resets: resets}
}

// RegisterChangeRoute binds the authenticated self-service change endpoint.
func (h *PasswordHandler) RegisterChangeRoute(r *gin.RouterGroup) {
	r.PUT("/password", h.change)
}

// RegisterResetRoutes binds the unauthenticated reset endpoints.
func (h *PasswordHandler) RegisterResetRoutes(r *gin.RouterGroup) {
	r.POST("/password/reset", h.requestReset)
	r.PUT("/password/reset", h.redeemReset)
}

var changeErrorCases = []ErrorCase{
	{Err: usecase.ErrBadCredentials, Status: http.StatusUnauthorized, Message: "bad credentials"},
}

func (h *PasswordHandler) change(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	account, ok := middleware.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	err := h.passwords.Change(c.Request.Context(), account, req.CurrentPassword, req.Password, req.Password2)
	if err != nil {
		RespondWithMappedError(c, err, changeErrorCases, http.StatusInternalServerError, "password change failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

var resetErrorCases = []ErrorCase{
	{Err: usecase.ErrEmailNotFound, Status: http.StatusBadRequest, Message: "email not found"},
	{Err: usecase.ErrTooManyRequests, Status: http.StatusTooManyRequests, Message: "too many reset requests"},
	{Err: usecase.ErrResetCodeInvalid, Status: http.StatusBadRequest, Message: "invalid reset code"},
}

func (h *PasswordHandler) requestReset(c *gin.Context) {
	var req ResetRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	sent, err := h.resets.Request(c.Request.Context(), req.Email, c.ClientIP())
	if err != nil {
		RespondWithMappedError(c, err, resetErrorCases, http.StatusInternalServerError, "reset request failed")
		return
	}

	// The request is accepted even when out-of-band delivery failed.
	c.JSON(http.StatusCreated, ResetRequestResponse{Success: true, CodeSent: sent})
}

func (h *PasswordHandler) redeemReset(c *gin.Context) {
	var req ResetRedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	err := h.resets.Redeem(c.Request.Context(), req.Email, req.Code, req.Password, req.Password2)
	if err != nil {
		RespondWithMappedError(c, err, resetErrorCases, http.StatusInternalServerError, "reset failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
