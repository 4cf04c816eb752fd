package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/core/port"
	"github.com/avelko/account-iam/internal/usecase"
)

const defaultPageSize = 25

// AccountHandler exposes administrative account management.
type AccountHandler struct {
	accounts *usecase.AccountService
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(accounts *usecase.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// RegisterRoutes binds account management routes.
func (h *AccountHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/accounts", h.create)
	r.GET("/accounts", h.list)
	r.GET("/accounts/:id", h.get)
	r.PUT("/accounts/:id/status", h.updateStatus)
	r.PUT("/accounts/:id/password", h.setPassword)
}

var accountErrorCases = []ErrorCase{
	{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "account not found"},
	{Err: usecase.ErrConflict, Status: http.StatusConflict, Message: "login already taken"},
	{Err: usecase.ErrInvalidInput, Status: http.StatusBadRequest, Message: "invalid request"},
}

func (h *AccountHandler) create(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	account, err := h.accounts.Create(c.Request.Context(), usecase.CreateAccountInput{
		Kind:     domain.AccountKind(req.Kind),
		Login:    req.Login,
		Email:    req.Email,
		Password: req.Password,
		Confirm:  req.Password2,
		Status:   domain.AccountStatus(req.Status),
	})
	if err != nil {
		RespondWithMappedError(c, err, accountErrorCases, http.StatusInternalServerError, "account creation failed")
		return
	}

	c.JSON(http.StatusCreated, NewAccountResponse(account.Sanitized()))
}

func (h *AccountHandler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	filter := port.AccountFilter{
		Kind:   domain.AccountKind(c.Query("kind")),
		Status: domain.AccountStatus(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	}

	accounts, total, err := h.accounts.List(c.Request.Context(), filter)
	if err != nil {
		RespondWithMappedError(c, err, accountErrorCases, http.StatusInternalServerError, "listing failed")
		return
	}

	resp := AccountListResponse{
		Accounts: make([]AccountResponse, 0, len(accounts)),
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}
	for _, account := range accounts {
		resp.Accounts = append(resp.Accounts, NewAccountResponse(account.Sanitized()))
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AccountHandler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid account id"))
		return
	}

	account, err := h.accounts.Get(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, err, accountErrorCases, http.StatusInternalServerError, "fetch failed")
		return
	}

	c.JSON(http.StatusOK, NewAccountResponse(account.Sanitized()))
}

func (h *AccountHandler) updateStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid account id"))
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	if err := h.accounts.UpdateStatus(c.Request.Context(), id, domain.AccountStatus(req.Status)); err != nil {
		RespondWithMappedError(c, err, accountErrorCases, http.StatusInternalServerError, "status update failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AccountHandler) setPassword(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid account id"))
		return
	}

	var req SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	if err := h.accounts.SetPassword(c.Request.Context(), id, req.Password, req.Password2); err != nil {
		RespondWithMappedError(c, err, accountErrorCases, http.StatusInternalServerError, "password update failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
