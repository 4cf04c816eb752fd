package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/usecase"
)

// PolicyHandler exposes policy management.
type PolicyHandler struct {
	policies *usecase.PolicyService
}

// NewPolicyHandler constructs a PolicyHandler.
func NewPolicyHandler(policies *usecase.PolicyService) *PolicyHandler {
	return &PolicyHandler{policies: policies}
}

// RegisterRoutes binds policy management routes.
func (h *PolicyHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/policies", h.create)
	r.GET("/policies", h.list)
	r.GET("/policies/:id", h.get)
	r.POST("/policies/:id/assignments", h.assign)
	r.GET("/accounts/:id/policies", h.listByAccount)
}

var policyErrorCases = []ErrorCase{
	{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "not found"},
	{Err: usecase.ErrConflict, Status: http.StatusConflict, Message: "policy name already taken"},
	{Err: usecase.ErrInvalidInput, Status: http.StatusBadRequest, Message: "invalid request"},
}

func (h *PolicyHandler) create(c *gin.Context) {
	var req CreatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	policy, err := h.policies.Create(c.Request.Context(), domain.Policy{
		Name:                 req.Name,
		Kind:                 domain.AccountKind(req.Kind),
		Priority:             req.Priority,
		LockoutEnabled:       req.LockoutEnabled,
		MaxAttempts:          req.MaxAttempts,
		LoginTimeframe:       time.Duration(req.LoginTimeframeSecs) * time.Second,
		BanTime:              time.Duration(req.BanTimeSecs) * time.Second,
		LockoutByIP:          req.LockoutByIP,
		PasswordComplexity:   req.PasswordComplexity,
		PasswordReuseHistory: req.PasswordReuseHistory,
		PasswordResetDays:    req.PasswordResetDays,
	})
	if err != nil {
		RespondWithMappedError(c, err, policyErrorCases, http.StatusInternalServerError, "policy creation failed")
		return
	}

	c.JSON(http.StatusCreated, NewPolicyResponse(*policy))
}

func (h *PolicyHandler) list(c *gin.Context) {
	policies, err := h.policies.List(c.Request.Context())
	if err != nil {
		RespondWithMappedError(c, err, policyErrorCases, http.StatusInternalServerError, "listing failed")
		return
	}

	resp := make([]PolicyResponse, 0, len(policies))
	for _, policy := range policies {
		resp = append(resp, NewPolicyResponse(policy))
	}

	c.JSON(http.StatusOK, gin.H{"policies": resp})
}

func (h *PolicyHandler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid policy id"))
		return
	}

	policy, err := h.policies.Get(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, err, policyErrorCases, http.StatusInternalServerError, "fetch failed")
		return
	}

	c.JSON(http.StatusOK, NewPolicyResponse(*policy))
}

func (h *PolicyHandler) assign(c *gin.Context) {
	policyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid policy id"))
		return
	}

	var req AssignPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	if err := h.policies.Assign(c.Request.Context(), policyID, req.AccountID); err != nil {
		RespondWithMappedError(c, err, policyErrorCases, http.StatusInternalServerError, "assignment failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

func (h *PolicyHandler) listByAccount(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid account id"))
		return
	}

	policies, err := h.policies.ListByAccount(c.Request.Context(), accountID)
	if err != nil {
		RespondWithMappedError(c, err, policyErrorCases, http.StatusInternalServerError, "listing failed")
		return
	}

	resp := make([]PolicyResponse, 0, len(policies))
	for _, policy := range policies {
		resp = append(resp, NewPolicyResponse(policy))
	}

	c.JSON(http.StatusOK, gin.H{"policies": resp})
}
