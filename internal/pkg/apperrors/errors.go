package apperrors

import (
	"errors"
	"fmt"

	"github.com/tutorium/backend/internal/scheduling"
)

// Common errors
var (
	// Resource errors
	ErrResourceNotFound      = errors.New("resource not found")
	ErrResourceAlreadyExists = errors.New("resource already exists")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrInvalidFormat      = errors.New("invalid token format")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")

	// User errors
	ErrUserNotFound = errors.New("user not found")
)

// Meeting errors
var (
	ErrInvalidMeetingRequest = errors.New("invalid meeting request")
	ErrMeetingConflict       = errors.New("meeting conflict")
	ErrMeetingNotFound       = errors.New("meeting not found")
	ErrSchedulerBusy         = errors.New("scheduler busy")
)

// Chat errors
var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotParticipant  = errors.New("user is not a participant of this chat")
)

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	Code    string
	Details map[string]interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// WithDetails adds context details to the error
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}

// WithCode adds an error code
func (e *CustomError) WithCode(code string) *CustomError {
	e.Code = code
	return e
}

// NewResourceNotFoundError creates a new custom error for resource not found with a message
func NewResourceNotFoundError(message string) error {
	return &CustomError{
		Err:     ErrResourceNotFound,
		Message: message,
	}
}

// NewForbiddenError creates a new custom error for permission denied with a message
func NewForbiddenError(message string) error {
	return &CustomError{
		Err:     ErrPermissionDenied,
		Message: message,
	}
}

// NewBadRequestError creates a new custom error for bad request with a message
func NewBadRequestError(message string) error {
	return &CustomError{
		Err:     ErrBadRequest,
		Message: message,
	}
}

// NewInvalidMeetingRequestError creates an error for malformed scheduling requests
func NewInvalidMeetingRequestError(message string) error {
	return &CustomError{
		Err:     ErrInvalidMeetingRequest,
		Message: message,
	}
}

// ConflictError reports a double-booking attempt. It names the clashing
// resource and the committed window so callers can offer alternatives.
type ConflictError struct {
	Resource scheduling.ResourceKey
	Existing scheduling.Interval
	// MeetingID is the id of the meeting already holding the window.
	MeetingID string
}

// Error implements error interface
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %d is already booked for %s by meeting %s",
		e.Resource.Kind, e.Resource.ID, e.Existing, e.MeetingID)
}

// Unwrap classifies every conflict under ErrMeetingConflict.
func (e *ConflictError) Unwrap() error {
	return ErrMeetingConflict
}

// NewConflictError builds a ConflictError from the clashing reservation.
func NewConflictError(resource scheduling.ResourceKey, existing scheduling.Reservation) *ConflictError {
	return &ConflictError{
		Resource:  resource,
		Existing:  existing.Interval,
		MeetingID: existing.MeetingID,
	}
}

// Is returns whether target matches err or any of the errors in errList
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}
	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
