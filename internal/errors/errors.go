package errors

import "fmt"

// ErrorCode represents a SideQuests error code.
type ErrorCode string

const (
	ErrPermissionDenied    ErrorCode = "PERMISSION_DENIED"    // 403
	ErrLocationUnavailable ErrorCode = "LOCATION_UNAVAILABLE" // 502
	ErrTimeout             ErrorCode = "TIMEOUT"              // 504
	ErrMonitoringFailed    ErrorCode = "MONITORING_FAILED"    // 502
	ErrRequestInFlight     ErrorCode = "REQUEST_IN_FLIGHT"    // 409
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"      // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"            // 404
	ErrDecodeFailure       ErrorCode = "DECODE_FAILURE"       // 422
	ErrInternal            ErrorCode = "INTERNAL"             // 500
)

// QuestError represents a structured error with code, status, and details.
type QuestError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *QuestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPermissionDenied creates a 403 error for missing location authorization.
func NewPermissionDenied() *QuestError {
	return &QuestError{
		Code:    ErrPermissionDenied,
		Status:  403,
		Message: "location permission is required for this operation",
	}
}

// NewLocationUnavailable creates a 502 error for a failed location fix.
func NewLocationUnavailable(err error) *QuestError {
	msg := "failed to get location"
	if err != nil {
		msg = fmt.Sprintf("failed to get location: %s", err.Error())
	}
	return &QuestError{
		Code:    ErrLocationUnavailable,
		Status:  502,
		Message: msg,
	}
}

// NewTimeout creates a 504 error for an operation that exceeded its bound.
func NewTimeout(op string) *QuestError {
	return &QuestError{
		Code:    ErrTimeout,
		Status:  504,
		Message: fmt.Sprintf("%s timed out", op),
		Details: map[string]any{"operation": op},
	}
}

// NewMonitoringFailed creates a 502 error for a rejected region registration.
func NewMonitoringFailed(region string, err error) *QuestError {
	msg := fmt.Sprintf("failed to monitor region %q", region)
	if err != nil {
		msg = fmt.Sprintf("failed to monitor region %q: %s", region, err.Error())
	}
	return &QuestError{
		Code:    ErrMonitoringFailed,
		Status:  502,
		Message: msg,
		Details: map[string]any{"region": region},
	}
}

// NewRequestInFlight creates a 409 error for an overlapping one-shot request.
func NewRequestInFlight(op string) *QuestError {
	return &QuestError{
		Code:    ErrRequestInFlight,
		Status:  409,
		Message: fmt.Sprintf("another %s request is already in flight", op),
		Details: map[string]any{"operation": op},
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *QuestError {
	return &QuestError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for an unknown pack or prompt.
func NewNotFound(identifier string) *QuestError {
	return &QuestError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewDecodeFailure creates a 422 error for malformed pack data.
func NewDecodeFailure(file string, err error) *QuestError {
	msg := fmt.Sprintf("failed to decode %q", file)
	if err != nil {
		msg = fmt.Sprintf("failed to decode %q: %s", file, err.Error())
	}
	return &QuestError{
		Code:    ErrDecodeFailure,
		Status:  422,
		Message: msg,
		Details: map[string]any{"file": file},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *QuestError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &QuestError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a QuestError with the given code.
func Is(err error, code ErrorCode) bool {
	if qErr, ok := err.(*QuestError); ok {
		return qErr.Code == code
	}
	return false
}
