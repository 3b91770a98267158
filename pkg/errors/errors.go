package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a class of application error.
type ErrorCode string

const (
	CodeNotFound             ErrorCode = "not_found"
	CodeBadRequest           ErrorCode = "bad_request"
	CodeUnauthorized         ErrorCode = "unauthorized"
	CodeForbidden            ErrorCode = "forbidden"
	CodeInternal             ErrorCode = "internal"
	CodeInvalidTransition    ErrorCode = "invalid_transition"
	CodeIncompleteCompletion ErrorCode = "incomplete_completion"
	CodeMissingLocation      ErrorCode = "missing_location"
	CodePermissionDenied     ErrorCode = "permission_denied"
)

// AppError carries an error code and user-facing message across layers.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error code to a response status.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeBadRequest, CodeIncompleteCompletion, CodeMissingLocation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodePermissionDenied:
		return http.StatusForbidden
	case CodeInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// InvalidTransition reports an illegal lifecycle state change. The
// request's status is left unchanged by the caller.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

// NoSuccessor reports an advance attempt from a state the automatic
// flow never leaves on its own.
func NoSuccessor(from string) *AppError {
	return &AppError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("no automatic successor from %s", from),
	}
}

// IncompleteCompletion reports a completion attempt without both ratings.
func IncompleteCompletion(message string) *AppError {
	return &AppError{
		Code:    CodeIncompleteCompletion,
		Message: message,
	}
}

// MissingLocation reports an operation that needs live coordinates
// which are absent from the request.
func MissingLocation(message string) *AppError {
	return &AppError{
		Code:    CodeMissingLocation,
		Message: message,
	}
}

func PermissionDenied(message string) *AppError {
	return &AppError{
		Code:    CodePermissionDenied,
		Message: message,
	}
}

// AsAppError unwraps err into an *AppError if one is in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
