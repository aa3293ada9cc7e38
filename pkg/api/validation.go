package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/marcelogudines/sales/pkg/errors"
)

// CodeRequestInvalidField is the notification code of a binding failure
const CodeRequestInvalidField = "request.invalid_field"

// BindAndValidate binds the JSON body into obj and runs its binding tags.
// Field failures become notifications whose paths use JSON names.
func BindAndValidate(c *gin.Context, obj any) *errors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		return bindingError(err, "invalid request body")
	}
	return nil
}

// BindQueryAndValidate binds query parameters into obj and validates them
func BindQueryAndValidate(c *gin.Context, obj any) *errors.AppError {
	if err := c.ShouldBindQuery(obj); err != nil {
		return bindingError(err, "invalid query parameters")
	}
	return nil
}

func bindingError(err error, prefix string) *errors.AppError {
	var validationErrors validator.ValidationErrors
	if stderrors.As(err, &validationErrors) {
		notifications := make([]errors.Notification, 0, len(validationErrors))
		for _, fe := range validationErrors {
			notifications = append(notifications, errors.Notification{
				Code:     CodeRequestInvalidField,
				Message:  errorMessage(fe),
				Path:     FieldPath(fe),
				Severity: "error",
			})
		}
		return errors.ErrValidation("validation failed").WithNotifications(notifications)
	}

	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) {
		return errors.ErrBadRequest(fmt.Sprintf("%s: %s must be %s", prefix, typeErr.Field, typeErr.Type)).
			WithDetail("field", typeErr.Field)
	}
	if stderrors.Is(err, io.EOF) {
		return errors.ErrBadRequest(prefix + ": body is empty")
	}
	return errors.ErrBadRequest(fmt.Sprintf("%s: %v", prefix, err))
}

// FieldPath converts a validator namespace into a JSON path such as
// items[0].productId. The root type and embedded struct names are dropped.
func FieldPath(fe validator.FieldError) string {
	segments := strings.Split(fe.Namespace(), ".")
	if len(segments) > 0 {
		segments = segments[1:]
	}

	path := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment == "" || unicode.IsUpper(rune(segment[0])) {
			continue
		}
		path = append(path, segment)
	}
	if len(path) == 0 {
		return fe.Field()
	}
	return strings.Join(path, ".")
}

// errorMessage returns a human-readable message for a validation error
func errorMessage(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "not_blank":
		return fmt.Sprintf("%s must not be blank", field)
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		switch fe.Kind().String() {
		case "string":
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		case "slice":
			return fmt.Sprintf("%s must have at most %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
