package errors

import (
	"errors"
	"net/http"
)

// Sentinel error classes for the order/history subsystem.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("resource conflict")
	ErrMutation     = errors.New("mutation failed")
	ErrLedgerAppend = errors.New("history append failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("service unavailable")
	ErrTimeout      = errors.New("timeout")
	ErrInternal     = errors.New("internal error")
)

// AppError carries an error class plus the context the API and logs need.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Retryable  bool
	Context    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext attaches a key/value pair for logging and API responses.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func newAppError(class error, message string, status int, retryable bool) *AppError {
	return &AppError{
		Err:        class,
		Message:    message,
		StatusCode: status,
		Retryable:  retryable,
	}
}

// NewNotFound reports a missing resource. Not retryable.
func NewNotFound(message string) *AppError {
	return newAppError(ErrNotFound, message, http.StatusNotFound, false)
}

// NewValidation reports input rejected before any mutation was attempted:
// unknown enum value, illegal transition, or a missing required reason.
func NewValidation(message string) *AppError {
	return newAppError(ErrValidation, message, http.StatusBadRequest, false)
}

// NewConflict reports a concurrent change detected by the expected-value
// check; the caller should re-read and resubmit.
func NewConflict(message string) *AppError {
	return newAppError(ErrConflict, message, http.StatusConflict, false)
}

// NewMutation reports a storage failure while applying an update. No partial
// state is visible; resubmission is safe.
func NewMutation(message string) *AppError {
	return newAppError(ErrMutation, message, http.StatusInternalServerError, true)
}

// NewLedgerAppend reports the high-severity case where the history append
// could not be recorded. The enclosing transaction is rolled back, so the
// order is unchanged, but the failure must be logged loudly rather than
// shown as an ordinary error.
func NewLedgerAppend(message string) *AppError {
	return newAppError(ErrLedgerAppend, message, http.StatusInternalServerError, true)
}

// NewUnauthorized reports a rejected actor identity.
func NewUnauthorized(message string) *AppError {
	return newAppError(ErrUnauthorized, message, http.StatusUnauthorized, false)
}

// NewTimeout reports a collaborator that did not answer in time.
func NewTimeout(message string) *AppError {
	return newAppError(ErrTimeout, message, http.StatusGatewayTimeout, true)
}

// NewUnavailable reports a collaborator outage.
func NewUnavailable(message string) *AppError {
	return newAppError(ErrUnavailable, message, http.StatusServiceUnavailable, true)
}

// NewInternal reports an unclassified failure.
func NewInternal(message string) *AppError {
	return newAppError(ErrInternal, message, http.StatusInternalServerError, true)
}

// IsRetryable reports whether resubmitting the operation may succeed.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}

	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout)
}

// StatusCode maps an error to an HTTP status, defaulting to 500.
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
