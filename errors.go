package metacache

import (
	"errors"
	"fmt"

	"github.com/go-metacache/metacache/meta"
)

// ErrServerMarkedDown is returned by ServerPool.Execute when the server's
// mark-down window is active and this call was not chosen as the prober.
var ErrServerMarkedDown = errors.New("metacache: server marked down")

// ErrCacheMiss is a sentinel for a cache miss. No operation in this
// package returns it: the Get-family operations report a miss as false
// with a nil error.
var ErrCacheMiss = errors.New("metacache: cache miss")

// ErrNoServers is returned when a Router has no servers to route to.
var ErrNoServers = errors.New("metacache: no servers configured")

// ConnectionError wraps a network I/O failure encountered while talking to
// a server, so callers can distinguish it from a protocol-level error
// returned by the server itself.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("metacache: connection to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ShouldCloseConnection always reports true: a ConnectionError means the
// socket itself failed.
func (e *ConnectionError) ShouldCloseConnection() bool { return true }

// TypeMismatchError is returned by the high-level Get-family operations,
// when WithErrorOnTypeMismatch is enabled, if a Codec cannot decode a
// stored value into the requested Go type.
type TypeMismatchError struct {
	ClientFlag uint32
	Err        error
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("metacache: value with client_flag %d has the wrong type: %v", e.ClientFlag, e.Err)
}

func (e *TypeMismatchError) Unwrap() error { return e.Err }

// IsServerError reports whether err represents a failure on the server
// side of the wire, as opposed to a client-side usage error (bad key,
// type mismatch): connection failures, mark-down, and the meta package's
// SERVER_ERROR/CLIENT_ERROR/generic protocol errors all count.
func IsServerError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrServerMarkedDown) {
		return true
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return true
	}
	var circuitErr *ErrCircuitOpen
	if errors.As(err, &circuitErr) {
		return true
	}
	var clientErr *meta.ClientError
	if errors.As(err, &clientErr) {
		return true
	}
	var serverErr *meta.ServerError
	if errors.As(err, &serverErr) {
		return true
	}
	var genericErr *meta.GenericError
	if errors.As(err, &genericErr) {
		return true
	}
	var parseErr *meta.ParseError
	if errors.As(err, &parseErr) {
		return true
	}
	return false
}
