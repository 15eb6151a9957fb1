package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Payment Business Logic (PAY) ----

func ErrInvalidAmount() *AppError {
	return New("VAL_001", "Invalid amount", http.StatusBadRequest)
}

func ErrInvalidCurrency() *AppError {
	return New("VAL_002", "Invalid currency code", http.StatusBadRequest)
}

// Validation returns a generic validation error with a custom message.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInvalidState(message string) *AppError {
	return New("STATE_001", message, http.StatusConflict)
}

func ErrAmountExceeded() *AppError {
	return New("AMOUNT_001", "Refund amount exceeds remaining refundable balance", http.StatusUnprocessableEntity)
}

func ErrInvalidPaymentKey() *AppError {
	return New("PAY_002", "Payment key is invalid or inactive", http.StatusForbidden)
}

// ---- Settlement Collaborator (COLLAB) ----

// ErrCollaboratorTransient marks a retryable settlement failure
// (timeout, 5xx, connection error). Never surfaced to API callers.
func ErrCollaboratorTransient(err error) *AppError {
	return Wrap("COLLAB_001", "Settlement collaborator temporarily unavailable", http.StatusServiceUnavailable, err)
}

// ErrCollaboratorRejected marks a terminal business rejection by the
// settlement collaborator (e.g. insufficient funds). Not retried.
func ErrCollaboratorRejected(reason string) *AppError {
	return New("COLLAB_002", reason, http.StatusUnprocessableEntity)
}

// IsTransient reports whether err is a retryable collaborator failure.
func IsTransient(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == "COLLAB_001"
}

// ---- Webhook Delivery (HOOK) ----

func ErrDeliveryExhausted() *AppError {
	return New("HOOK_001", "Webhook delivery retries exhausted", http.StatusServiceUnavailable)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrMerchantSuspended() *AppError {
	return New("AUTH_004", "Merchant account is suspended", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_002", "Encryption service failure", http.StatusInternalServerError, err)
}
