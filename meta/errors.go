package meta

import (
	"errors"
	"fmt"
)

// ClientError is a CLIENT_ERROR line: the server rejected malformed input
// and the parser state is undefined. The connection must be closed.
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string { return "CLIENT_ERROR: " + e.Message }

func (e *ClientError) ShouldCloseConnection() bool { return true }

// ServerError is a SERVER_ERROR line: the operation failed on the server
// side but the connection's protocol state is still valid.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return "SERVER_ERROR: " + e.Message }

func (e *ServerError) ShouldCloseConnection() bool { return false }

// GenericError is a bare ERROR line: unknown command or protocol violation.
type GenericError struct {
	Message string
}

func (e *GenericError) Error() string { return e.Message }

func (e *GenericError) ShouldCloseConnection() bool { return true }

// InvalidKeyError is raised client-side by ValidateKey before anything is
// sent. The connection is untouched.
type InvalidKeyError struct {
	Message string
}

func (e *InvalidKeyError) Error() string { return e.Message }

// ParseError means the client failed to make sense of a response: either
// the server violated the protocol or the parser has a bug either way the
// connection's read state is no longer trustworthy.
type ParseError struct {
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "parse error: " + e.Message + ": " + e.Err.Error()
	}
	return "parse error: " + e.Message
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) ShouldCloseConnection() bool { return true }

// ConnectionError wraps an I/O failure from the underlying transport.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) ShouldCloseConnection() bool { return true }

// ErrorWithConnectionState is implemented by every error type in this
// package; it tells the caller whether the connection is still usable.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err leaves the connection's
// protocol state unreliable. nil is always false; an error type this
// package doesn't recognize defaults to true.
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
