package meta

import (
	"errors"
	"fmt"
)

// ErrorWithConnectionState is implemented by every reply and parse error
// this package returns, so callers can decide whether the connection's
// reply stream is still at a clean boundary. InvalidKeyError does not
// implement it.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ClientError is a CLIENT_ERROR reply: the server rejected malformed input.
// The connection's protocol state is undefined afterwards — close it.
type ClientError struct{ Message string }

func (e *ClientError) Error() string               { return "CLIENT_ERROR: " + e.Message }
func (e *ClientError) ShouldCloseConnection() bool { return true }

// ServerError is a SERVER_ERROR reply: a server-side failure (OOM,
// internal error). The line was read in full, so the connection can be
// reused.
type ServerError struct{ Message string }

func (e *ServerError) Error() string               { return "SERVER_ERROR: " + e.Message }
func (e *ServerError) ShouldCloseConnection() bool { return false }

// GenericError is a bare ERROR reply (unknown command, protocol
// violation). Close the connection.
type GenericError struct{ Message string }

func (e *GenericError) Error() string               { return e.Message }
func (e *GenericError) ShouldCloseConnection() bool { return true }

// ParseError is a client-side failure to parse a reply. The byte stream
// position is no longer trustworthy — close the connection.
type ParseError struct {
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "meta: parse error: " + e.Message + ": " + e.Err.Error()
	}
	return "meta: parse error: " + e.Message
}
func (e *ParseError) Unwrap() error             { return e.Err }
func (e *ParseError) ShouldCloseConnection() bool { return true }

// InvalidKeyError is returned client-side, before anything is written to
// the wire, when a key fails validation.
type InvalidKeyError struct{ Message string }

func (e *InvalidKeyError) Error() string { return "meta: invalid key: " + e.Message }

// ShouldCloseConnection reports whether err leaves the connection's reply
// stream at an uncertain boundary. Unrecognized error types are treated
// conservatively as requiring closure.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}
	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}
	return true
}

// NewErrorResponse builds a Response carrying a non-meta protocol error,
// parsed from an ERROR / CLIENT_ERROR / SERVER_ERROR status line.
func NewErrorResponse(line string) *Response {
	switch {
	case hasPrefix(line, ErrorClientPrefix):
		return &Response{Error: &ClientError{Message: trimPrefix(line, ErrorClientPrefix)}}
	case hasPrefix(line, ErrorServerPrefix):
		return &Response{Error: &ServerError{Message: trimPrefix(line, ErrorServerPrefix)}}
	case line == ErrorGeneric:
		return &Response{Error: &GenericError{Message: ErrorGeneric}}
	default:
		return &Response{Error: &GenericError{Message: fmt.Sprintf("unrecognized error line: %q", line)}}
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func trimPrefix(s, prefix string) string {
	s = s[len(prefix):]
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	return s
}
