package websmith

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure scenarios
var (
	// ErrRateLimited is the cause of errors returned when the local rate limiter denies a call
	ErrRateLimited = errors.New("websmith: rate limited")

	// ErrCircuitOpen is the cause of errors returned while the circuit breaker is open
	ErrCircuitOpen = errors.New("websmith: circuit open")

	// ErrInvalidConfig is returned when client or file configuration fails validation
	ErrInvalidConfig = errors.New("websmith: invalid configuration")

	// ErrItemPanicked is the cause recorded for a batch item whose processor panicked
	ErrItemPanicked = errors.New("websmith: batch item panicked")
)

// ErrorKind classifies an APIError.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "RateLimited"
	KindNetwork     ErrorKind = "Network"
	KindHTTP        ErrorKind = "HTTP"
	KindCircuitOpen ErrorKind = "CircuitOpen"
	KindUnexpected  ErrorKind = "Unexpected"
)

const (
	networkErrorMessage    = "Network error. Please check your connection."
	unexpectedErrorMessage = "An unexpected error occurred."
	rateLimitedMessage     = "Too many requests. Please wait before trying again."
	circuitOpenMessage     = "Service temporarily unavailable. Please try again later."
)

var statusMessages = map[int]string{
	400: "Bad request. Please check your input.",
	401: "Unauthorized. Please log in again.",
	403: "Forbidden. You don't have permission to perform this action.",
	404: "Resource not found.",
	409: "Conflict. The resource already exists or has been modified.",
	422: "Validation error. Please check your input.",
	429: "Too many requests. Please try again later.",
	500: "Internal server error. Please try again later.",
	502: "Bad gateway. The server is temporarily unreachable.",
	503: "Service unavailable. Please try again later.",
}

// APIError is the normalized failure returned for every unsuccessful call.
// Status is zero when no HTTP response was received. The message is meant to
// be shown to end users as is.
type APIError struct {
	Kind      ErrorKind
	Message   string
	Status    int
	Data      any
	Cause     error
	Timestamp time.Time

	Method    string
	URL       string
	RequestID string
	Attempts  int
}

// NewAPIError builds an APIError from a message, HTTP status and optional server payload.
func NewAPIError(message string, status int, data any) *APIError {
	kind := KindUnexpected
	if status > 0 {
		kind = KindHTTP
	}
	return &APIError{
		Kind:      kind,
		Message:   message,
		Status:    status,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// Error implements error interface.
func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another *APIError by kind, and by status when the target sets one.
func (e *APIError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	if t.Status != 0 && t.Status != e.Status {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

type apiErrorJSON struct {
	Name      string `json:"name"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// MarshalJSON renders the error as {name, message, status, data, timestamp}
// with timestamp in Unix milliseconds.
func (e *APIError) MarshalJSON() ([]byte, error) {
	return json.Marshal(apiErrorJSON{
		Name:      "APIError",
		Message:   e.Message,
		Status:    e.Status,
		Data:      e.Data,
		Timestamp: e.Timestamp.UnixMilli(),
	})
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *APIError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Kind: %s\n", e.Kind)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Status > 0 {
		info += fmt.Sprintf("Status: %d\n", e.Status)
	}
	if e.Attempts > 0 {
		info += fmt.Sprintf("Attempts: %d\n", e.Attempts)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsRetryable reports whether err is a network failure or a 5xx response.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Kind == KindNetwork || apiErr.Status >= 500
}

// DefaultRetryCondition retries server side failures (status >= 500) only.
// 4xx responses will not resolve themselves and are returned immediately.
func DefaultRetryCondition(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status >= 500
}

func newRateLimitedError() *APIError {
	return &APIError{
		Kind:      KindRateLimited,
		Message:   rateLimitedMessage,
		Status:    429,
		Cause:     ErrRateLimited,
		Timestamp: time.Now(),
	}
}

func newCircuitOpenError() *APIError {
	return &APIError{
		Kind:      KindCircuitOpen,
		Message:   circuitOpenMessage,
		Cause:     ErrCircuitOpen,
		Timestamp: time.Now(),
	}
}

// statusMessage picks the user facing message for an HTTP failure: a server
// supplied message/detail/error string first, then the fixed text for well
// known statuses, then a generic one.
func statusMessage(status int, data any) string {
	if m, ok := data.(map[string]any); ok {
		for _, field := range []string{"message", "detail", "error"} {
			if s, ok := m[field].(string); ok && s != "" {
				return s
			}
		}
	}
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return fmt.Sprintf("HTTP %d Error", status)
}
