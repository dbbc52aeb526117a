package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Error represents a typed domain error with HTTP awareness. Fields carries
// collected field-level validation messages when the error is a
// VALIDATION_ERROR; business-rule errors are single-reason and leave it nil.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Generic errors shared across services.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Attendance marking errors.
var (
	ErrIdentityMismatch = New("IDENTITY_MISMATCH", http.StatusUnprocessableEntity, "scanned identity does not match student record")
	ErrWrongDay         = New("WRONG_DAY", http.StatusUnprocessableEntity, "session is not scheduled today")
	ErrOutsideWindow    = New("OUTSIDE_WINDOW", http.StatusUnprocessableEntity, "scan is outside the session entry window")
	ErrNotEnrolled      = New("NOT_ENROLLED", http.StatusUnprocessableEntity, "student is not enrolled in this class")
)

// Reassignment adjudication errors.
var (
	ErrPendingRequestExists = New("PENDING_REQUEST_EXISTS", http.StatusConflict, "student already has a pending reassignment request")
	ErrMaxRequestsReached   = New("MAX_REQUESTS_REACHED", http.StatusConflict, "student reached the reassignment request limit")
	ErrSameDayOnly          = New("SAME_DAY_ONLY", http.StatusUnprocessableEntity, "sessions must be on the same day")
	ErrSameClassOnly        = New("SAME_CLASS_ONLY", http.StatusUnprocessableEntity, "sessions must belong to the same class")
	ErrNotAssignedToSource  = New("NOT_ASSIGNED_TO_SOURCE", http.StatusUnprocessableEntity, "student is not assigned to the source session")
	ErrSessionFull          = New("SESSION_FULL", http.StatusConflict, "target session has no available capacity")
	ErrAlreadyProcessed     = New("ALREADY_PROCESSED", http.StatusConflict, "request has already been processed")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithFields returns a VALIDATION_ERROR carrying a field → message map so
// callers can surface every offending field at once.
func WithFields(fields map[string]string) *Error {
	e := *ErrValidation
	e.Fields = fields
	return &e
}

// FromValidation converts validator.ValidationErrors into a collected
// field-level error. Other errors fall through as a plain validation error.
func FromValidation(err error) *Error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Wrap(err, ErrValidation.Code, ErrValidation.Status, ErrValidation.Message)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	e := WithFields(fields)
	e.Err = err
	return e
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "uuid":
		return "must be a valid UUID"
	case "clock":
		return "must be a HH:MM time"
	case "session_day":
		return "must be SATURDAY or SUNDAY"
	case "phone":
		return "must be a valid phone number"
	case "student_number":
		return "must be a valid student number"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
