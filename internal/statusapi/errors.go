package statusapi

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why a poll failed. Every kind is recovered the same way
// by the dashboard; the split exists for logs and counters.
type Kind int

const (
	KindUnknown Kind = iota
	// TransportFailure means the request never completed.
	TransportFailure
	// HTTPStatusFailure means the backend answered with a non-2xx status.
	HTTPStatusFailure
	// MalformedResponse means the body could not be decoded.
	MalformedResponse
)

func (k Kind) String() string {
	switch k {
	case TransportFailure:
		return "transport"
	case HTTPStatusFailure:
		return "http_status"
	case MalformedResponse:
		return "malformed"
	default:
		return "unknown"
	}
}

// FetchError is returned by every Client method.
type FetchError struct {
	Kind       Kind
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case HTTPStatusFailure:
		return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
	case MalformedResponse:
		return fmt.Sprintf("invalid response from %s: %v", e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}
