package usecase

import "fmt"

type ErrorCode string

const (
	ErrorAuthentication ErrorCode = "AUTHENTICATION_ERROR"
	ErrorValidation     ErrorCode = "VALIDATION_ERROR"
	ErrorUnavailable    ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorRejected       ErrorCode = "ADMISSION_REJECTED"
	ErrorDependency     ErrorCode = "DEPENDENCY_FAILURE"
	ErrorDegraded       ErrorCode = "DEPENDENCY_DEGRADED"
	ErrorInternal       ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
