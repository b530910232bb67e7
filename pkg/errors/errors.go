package errors

import "fmt"

// ErrorType represents different types of errors that can occur during a crawl
type ErrorType string

const (
	ErrorTypeClassification ErrorType = "classification"
	ErrorTypeResolution     ErrorType = "resolution"
	ErrorTypeForbidden      ErrorType = "forbidden"
	ErrorTypeHTTP           ErrorType = "http"
	ErrorTypeTransport      ErrorType = "transport"
	ErrorTypeLedger         ErrorType = "ledger"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Error represents a crawl error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a typed error without an HTTP status code
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// NewHTTP creates an HTTP error carrying the response status code
func NewHTTP(code int, format string, args ...interface{}) *Error {
	return &Error{Type: ErrorTypeHTTP, Message: fmt.Sprintf(format, args...), Code: code}
}

// IsFatal reports whether an error type must abort the whole run. Only ledger
// failures qualify: without durable dedup the at-most-once guarantee is gone.
func IsFatal(errorType ErrorType) bool {
	return errorType == ErrorTypeLedger
}

// IsRetryable checks if an error type is worth retrying
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransport:
		return true
	case ErrorTypeClassification, ErrorTypeResolution, ErrorTypeForbidden, ErrorTypeLedger:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}
