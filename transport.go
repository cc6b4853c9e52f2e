package websmith

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// TransportFailure is the closed set of ways a transport call can fail:
// *NoResponse, *HTTPResponse or *OtherFailure. Error normalization switches
// over these cases instead of probing arbitrary error fields.
type TransportFailure interface {
	error
	transportFailure()
}

// NoResponse means the request never produced an HTTP response
// (DNS, connect, TLS, timeout, reset).
type NoResponse struct {
	Err error
}

func (f *NoResponse) Error() string { return fmt.Sprintf("no response: %v", f.Err) }
func (f *NoResponse) Unwrap() error { return f.Err }
func (*NoResponse) transportFailure() {}

// HTTPResponse means the server answered with a non-2xx status. Data holds the
// decoded JSON body when it parsed, Body the raw bytes.
type HTTPResponse struct {
	Status int
	Data   any
	Body   []byte
}

func (f *HTTPResponse) Error() string   { return fmt.Sprintf("http status %d", f.Status) }
func (*HTTPResponse) transportFailure() {}

// OtherFailure covers everything else, e.g. a request that could not be built.
type OtherFailure struct {
	Err error
}

func (f *OtherFailure) Error() string { return fmt.Sprintf("unexpected: %v", f.Err) }
func (f *OtherFailure) Unwrap() error { return f.Err }
func (*OtherFailure) transportFailure() {}

// Normalize converts a transport failure into an *APIError.
func Normalize(f TransportFailure) *APIError {
	now := time.Now()
	switch v := f.(type) {
	case *HTTPResponse:
		return &APIError{
			Kind:      KindHTTP,
			Message:   statusMessage(v.Status, v.Data),
			Status:    v.Status,
			Data:      v.Data,
			Cause:     v,
			Timestamp: now,
		}
	case *NoResponse:
		return &APIError{
			Kind:      KindNetwork,
			Message:   networkErrorMessage,
			Cause:     v.Err,
			Timestamp: now,
		}
	case *OtherFailure:
		msg := unexpectedErrorMessage
		if v.Err != nil && v.Err.Error() != "" {
			msg = v.Err.Error()
		}
		return &APIError{
			Kind:      KindUnexpected,
			Message:   msg,
			Cause:     v.Err,
			Timestamp: now,
		}
	default:
		return &APIError{
			Kind:      KindUnexpected,
			Message:   unexpectedErrorMessage,
			Cause:     f,
			Timestamp: now,
		}
	}
}

// AsAPIError builds an *APIError from any error. An existing *APIError in the
// chain is returned unchanged; nil stays nil.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Normalize(classifyError(err))
}

// classifyError maps an arbitrary error onto a TransportFailure.
func classifyError(err error) TransportFailure {
	var failure TransportFailure
	if errors.As(err, &failure) {
		return failure
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &NoResponse{Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &NoResponse{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &NoResponse{Err: err}
	}
	return &OtherFailure{Err: err}
}
