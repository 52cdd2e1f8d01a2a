// Package apperrors defines the error taxonomy shared by services and controllers.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups error codes by how they propagate to the caller.
type Kind string

const (
	KindClientInput    Kind = "client_input"
	KindAuthentication Kind = "authentication"
	KindConflict       Kind = "conflict"
	KindNotFound       Kind = "not_found"
	KindPersistence    Kind = "persistence"
	KindNotification   Kind = "notification"
	KindInternal       Kind = "internal"
)

// Code identifies a specific failure.
type Code string

const (
	CodeMissingField       Code = "MissingField"
	CodeInvalidField       Code = "InvalidField"
	CodeUnauthenticated    Code = "Unauthenticated"
	CodeInvalidToken       Code = "InvalidToken"
	CodeDuplicateEmail     Code = "DuplicateEmail"
	CodeUserNotFound       Code = "UserNotFound"
	CodeInvalidCredentials Code = "InvalidCredentials"
	CodeValidation         Code = "ValidationError"
	CodeStore              Code = "StoreError"
	CodeDelivery           Code = "DeliveryError"
	CodeInternal           Code = "InternalError"
)

// Error is the application error type. Message is safe to show to clients;
// Err holds the underlying cause and is only ever logged.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error to the status code returned by the API.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeMissingField, CodeInvalidField, CodeDuplicateEmail, CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthenticated, CodeInvalidCredentials:
		return http.StatusUnauthorized
	case CodeInvalidToken:
		return http.StatusForbidden
	case CodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the message that may be shown to a client. Server-side
// failures collapse to a generic message.
func (e *Error) Public() string {
	if e.HTTPStatus() >= http.StatusInternalServerError {
		return "Internal server error"
	}
	return e.Message
}

// WithDetail attaches a per-field detail and returns the same error.
func (e *Error) WithDetail(field, detail string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[field] = detail
	return e
}

func MissingField(message string) *Error {
	return &Error{Kind: KindClientInput, Code: CodeMissingField, Message: message}
}

func InvalidField(message string) *Error {
	return &Error{Kind: KindClientInput, Code: CodeInvalidField, Message: message}
}

func Unauthenticated(message string) *Error {
	return &Error{Kind: KindAuthentication, Code: CodeUnauthenticated, Message: message}
}

func InvalidToken(err error) *Error {
	return &Error{Kind: KindAuthentication, Code: CodeInvalidToken, Message: "Invalid token", Err: err}
}

func DuplicateEmail(err error) *Error {
	return &Error{Kind: KindConflict, Code: CodeDuplicateEmail, Message: "A user with this email already exists", Err: err}
}

func UserNotFound() *Error {
	return &Error{Kind: KindNotFound, Code: CodeUserNotFound, Message: "User not found"}
}

func InvalidCredentials() *Error {
	return &Error{Kind: KindAuthentication, Code: CodeInvalidCredentials, Message: "Invalid email or password"}
}

// Validation reports fields rejected by the store schema.
func Validation(details map[string]string, err error) *Error {
	return &Error{Kind: KindPersistence, Code: CodeValidation, Message: "Invalid order data", Details: details, Err: err}
}

func Store(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Code: CodeStore, Message: op + " failed", Err: err}
}

func Delivery(err error) *Error {
	return &Error{Kind: KindNotification, Code: CodeDelivery, Message: "Notification delivery failed", Err: err}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: message, Err: err}
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// From converts any error into an *Error, treating unknown errors as internal.
func From(err error) *Error {
	if appErr, ok := As(err); ok {
		return appErr
	}
	return Internal("Unexpected error", err)
}
