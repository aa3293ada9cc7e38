package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/marcelogudines/sales/pkg/contracts/openapi"
	"github.com/marcelogudines/sales/pkg/errors"
)

// CodeContractViolation is the notification code of an OpenAPI request violation
const CodeContractViolation = "request.contract_violation"

// OpenAPIValidation rejects requests that do not match the OpenAPI document.
// Routes the document does not describe pass through untouched.
func OpenAPIValidation(validator *openapi.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !validator.HasRoute(c.Request) {
			c.Next()
			return
		}

		if err := validator.ValidateRequest(c.Request); err != nil {
			violations := openapi.Violations(err)
			notifications := make([]errors.Notification, 0, len(violations))
			for _, v := range violations {
				notifications = append(notifications, errors.Notification{
					Code:     CodeContractViolation,
					Message:  v.Message,
					Path:     v.Path,
					Severity: "error",
				})
			}
			_ = c.Error(err)
			AbortWithAppError(c, errors.ErrValidation("request does not match the API contract").WithNotifications(notifications))
			return
		}

		c.Next()
	}
}
