package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp 10.0.0.1:443: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient_AdapterStatusMessages(t *testing.T) {
	transient := []error{
		eris.Errorf("serper: unexpected status %d: %s", 429, "rate limited"),
		eris.Errorf("brave: unexpected status %d: %s", 503, "unavailable"),
		eris.Errorf("youtube: unexpected status %d on %s: %s", 500, "/playlistItems", "boom"),
	}
	for _, err := range transient {
		assert.True(t, IsTransient(err), err.Error())
	}

	permanent := []error{
		eris.Errorf("serper: unexpected status %d: %s", 401, "bad key"),
		eris.Errorf("youtube: unexpected status %d on %s: %s", 404, "/search", "gone"),
		eris.New("serper: decode response: unexpected EOF"),
	}
	for _, err := range permanent {
		assert.False(t, IsTransient(err), err.Error())
	}
}

func TestIsTransient_ExplicitWrapped(t *testing.T) {
	inner := NewTransientError(errors.New("overloaded"), 529)
	assert.True(t, IsTransient(inner))
	assert.True(t, IsTransient(fmt.Errorf("judge call: %w", inner)))
}

func TestIsTransient_NetworkErrors(t *testing.T) {
	assert.True(t, IsTransient(timeoutErr{}))
	assert.True(t, IsTransient(fmt.Errorf("search: %w", syscall.ECONNRESET)))
	assert.True(t, IsTransient(fmt.Errorf("search: %w", syscall.ECONNREFUSED)))
	assert.True(t, IsTransient(errors.New("read: connection reset by peer")))
	assert.True(t, IsTransient(errors.New("lookup api.example: no such host")))
}

func TestIsTransient_OrdinaryErrors(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("invalid region code")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("base")
	te := NewTransientError(inner, 500)
	assert.ErrorIs(t, te, inner)
	assert.Equal(t, "base", te.Error())
}
