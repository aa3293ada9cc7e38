package domain

import (
	"errors"
	"reflect"
)

// ErrInconsistentResult is raised when a result is built with neither a value
// nor an error notification.
var ErrInconsistentResult = errors.New("domain: result has no value and no errors")

// Result carries either a value or the notifications explaining why there is
// none. A valid result may still carry warnings.
type Result[T any] struct {
	value         T
	valid         bool
	notifications *NotificationsBag
}

// Ok builds a valid result without notifications
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value, valid: true, notifications: &NotificationsBag{}}
}

// Fail builds an invalid result. At least one notification must be an error.
func Fail[T any](notifications ...Notification) Result[T] {
	bag := NewNotificationsBag(notifications...)
	if !bag.HasErrors() {
		panic(ErrInconsistentResult)
	}
	return Result[T]{notifications: bag}
}

// FailWith builds an invalid result with a single error notification
func FailWith[T any](code Code, message, path string) Result[T] {
	return Fail[T](Notification{Code: code, Message: message, Path: path, Severity: SeverityError})
}

// From builds a result from a candidate value and a bag. Any error in the bag
// makes the result invalid; otherwise the value must be present.
func From[T any](value T, bag *NotificationsBag) Result[T] {
	notes := bag.Clone()
	if notes.HasErrors() {
		return Result[T]{notifications: notes}
	}
	if isAbsent(value) {
		panic(ErrInconsistentResult)
	}
	return Result[T]{value: value, valid: true, notifications: notes}
}

// IsValid reports whether the result carries a value
func (r Result[T]) IsValid() bool {
	return r.valid
}

// Value returns the carried value, or the zero value for an invalid result
func (r Result[T]) Value() T {
	return r.value
}

// Notifications returns a copy of the result's notifications
func (r Result[T]) Notifications() *NotificationsBag {
	return r.notifications.Clone()
}

// Items is shorthand for Notifications().Items()
func (r Result[T]) Items() []Notification {
	return r.notifications.Items()
}

// Has reports whether the result carries a notification with code
func (r Result[T]) Has(code Code) bool {
	return r.notifications.Has(code)
}

func isAbsent(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}
