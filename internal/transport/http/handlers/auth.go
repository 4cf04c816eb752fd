package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/usecase"
)

// AuthHandler exposes login endpoints for one API surface. Two instances are
// mounted, one per surface, so the expected principal class is fixed at
// registration time.
type AuthHandler struct {
	auth     *usecase.Authenticator
	surface  domain.APISurface
	tokenTTL time.Duration
}

// NewAuthHandler constructs an AuthHandler for a surface.
func NewAuthHandler(auth *usecase.Authenticator, surface domain.APISurface, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, surface: surface, tokenTTL: tokenTTL}
}

// RegisterRoutes binds authentication routes.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.login)
}

var authErrorCases = []ErrorCase{
	{Err: usecase.ErrAccountLocked, Status: http.StatusTooManyRequests, Message: "account locked, try again later"},
	{Err: usecase.ErrBadCredentials, Status: http.StatusUnauthorized, Message: "bad credentials"},
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	account, err := h.auth.Authenticate(c.Request.Context(), req.Login, req.Password, c.ClientIP(), h.surface)
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases, http.StatusInternalServerError, "authentication failed")
		return
	}

	token, err := h.auth.IssueToken(account, h.tokenTTL)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "authentication failed")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(h.tokenTTL),
		Account:   NewAccountResponse(account.Sanitized()),
	})
}
