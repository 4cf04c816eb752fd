package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/usecase"
)

const principalKey = "principal"

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error string `json:"error"`
}

// RequireAuth validates the Authorization header, resolves the principal,
// and gates requests on principal class and password expiry. The expiry gate
// runs on every authenticated request, not only at login; the one exempt
// route is the self-service password change so a caller can escape the gate.
func RequireAuth(auth *usecase.Authenticator, passwords *usecase.PasswordService, kind domain.AccountKind, exemptRoutes ...string) gin.HandlerFunc {
	exempt := make(map[string]struct{}, len(exemptRoutes))
	for _, route := range exemptRoutes {
		exempt[route] = struct{}{}
	}

	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			return
		}

		account, err := auth.VerifyToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrTokenInvalid) {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					ErrorResponse{Error: "invalid or expired token"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				ErrorResponse{Error: "authentication failed"})
			return
		}

		if account.Kind != kind {
			c.AbortWithStatusJSON(http.StatusForbidden,
				ErrorResponse{Error: "insufficient permissions"})
			return
		}

		if _, skip := exempt[c.FullPath()]; !skip {
			expired, err := passwords.Expired(c.Request.Context(), account)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					ErrorResponse{Error: "authentication failed"})
				return
			}
			if expired {
				c.AbortWithStatusJSON(http.StatusForbidden,
					ErrorResponse{Error: "password expired"})
				return
			}
		}

		c.Set(principalKey, account)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			ErrorResponse{Error: "missing authorization header"})
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			ErrorResponse{Error: "invalid authorization format: expected 'Bearer <token>'"})
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			ErrorResponse{Error: "missing access token"})
		return "", false
	}

	return token, true
}

// Principal retrieves the authenticated account from the request context.
func Principal(c *gin.Context) (*domain.Account, bool) {
	val, exists := c.Get(principalKey)
	if !exists {
		return nil, false
	}

	account, ok := val.(*domain.Account)
	return account, ok
}
