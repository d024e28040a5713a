package dtrack

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound reports a project or resource that does not exist upstream.
	ErrNotFound = errors.New("not found in Dependency-Track")
	// ErrUnauthenticated reports a missing or rejected API key.
	ErrUnauthenticated = errors.New("Dependency-Track rejected the API key")
	// ErrUnauthorized reports an API key lacking a required permission.
	ErrUnauthorized = errors.New("Dependency-Track API key lacks permission")
)

// StatusError is any non-2xx answer. It matches ErrNotFound,
// ErrUnauthenticated and ErrUnauthorized through errors.Is.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("non-ok %d status code for %s %s", e.StatusCode, e.Method, e.URL)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthenticated:
		return e.StatusCode == http.StatusUnauthorized
	case ErrUnauthorized:
		return e.StatusCode == http.StatusForbidden
	}
	return false
}

// IsTransient reports whether err is worth retrying: a server side failure,
// throttling or a network problem.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError || statusErr.StatusCode == http.StatusTooManyRequests
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
