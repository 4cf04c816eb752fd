package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avelko/account-iam/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the provided error against known cases or
// falls back to a generic response. Policy violations get their own
// field-scoped envelope regardless of the case table.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	if pv, ok := usecase.AsPolicyViolation(err); ok {
		violations := make([]FieldViolation, 0, len(pv.Violations))
		for _, v := range pv.Violations {
			violations = append(violations, FieldViolation{Field: v.Field, Message: v.Message})
		}
		c.JSON(http.StatusBadRequest, ViolationResponse{
			Error:      "password policy violation",
			Violations: violations,
		})
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	c.Error(err) //nolint:errcheck
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}
