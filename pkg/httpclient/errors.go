package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Configuration errors returned by New.
var (
	ErrInvalidBaseURL  = errors.New("httpclient: base URL must be an absolute http(s) URL")
	ErrInvalidDataPath = errors.New("httpclient: invalid JSONPath for response data")
)

// TransportError describes a failed request: either the request could not
// be completed (Cause is set) or the server answered with a non-2xx status.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *TransportError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("%s %s: %s (%v)", e.Method, e.URL, e.Message, e.Cause)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Message)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether repeating the request may succeed: network
// failures, 408, 429 and 5xx responses.
func (e *TransportError) IsTransient() bool {
	if e.StatusCode == 0 {
		return e.Cause != nil
	}
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}
