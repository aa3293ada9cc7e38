package application

import (
	"net/http"

	"github.com/marcelogudines/sales/internal/domain"
	"github.com/marcelogudines/sales/pkg/errors"
)

// FromNotifications maps a failed domain result onto an AppError.
// The first error decides the status; every notification is attached.
func FromNotifications(bag *domain.NotificationsBag) *errors.AppError {
	items := bag.Items()

	appErr := errors.ErrUnprocessable("the request violates sale rules")
	for _, n := range items {
		if !n.IsError() {
			continue
		}
		if n.Code.IsNotFound() {
			appErr = errors.NewAppError(errors.CodeNotFound, n.Message, http.StatusNotFound)
		} else if n.Code == domain.CodeSaleAlreadyExists {
			appErr = errors.ErrConflict(n.Message)
		}
		break
	}
	return appErr.WithNotifications(ToNotifications(items))
}

// SaleNotFound is the error returned when no sale matches; path names the
// input that identified it
func SaleNotFound(path string) *errors.AppError {
	return FromNotifications(domain.NewNotificationsBag(domain.Notification{
		Code:    domain.CodeSaleNotFound,
		Message: "sale not found",
		Path:    path,
	}))
}
