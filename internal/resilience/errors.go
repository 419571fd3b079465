package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// TransientError marks an error as safe to retry.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient with an optional HTTP status.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// retryableStatuses are the HTTP statuses a provider or judge call may
// return on a momentary condition: timeouts, rate limits and 5xx.
var retryableStatuses = []int{408, 429, 500, 502, 503, 504}

// IsTransient reports whether err is worth a retry: an explicit
// TransientError in the chain, a network timeout or broken connection, or
// an adapter error whose message carries a retryable HTTP status. The
// search and judge adapters surface the upstream status as "status NNN"
// in their messages.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	for _, code := range retryableStatuses {
		if strings.Contains(msg, fmt.Sprintf("status %d", code)) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether statusCode is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	for _, code := range retryableStatuses {
		if statusCode == code {
			return true
		}
	}
	return false
}
