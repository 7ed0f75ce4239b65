package memcache

import (
	"github.com/cockroachdb/errors"
)

// ConnectionShutdownError is returned by Submit and leased operations once a
// Connection has transitioned to Finished, and by every waiter still queued
// when that transition happens.
type ConnectionShutdownError struct {
	cause error
}

func newConnectionShutdownError(cause error) *ConnectionShutdownError {
	return &ConnectionShutdownError{cause: errors.WithStack(cause)}
}

func (e *ConnectionShutdownError) Error() string {
	if e.cause == nil {
		return "memcache: connection shut down"
	}
	return "memcache: connection shut down: " + e.cause.Error()
}

func (e *ConnectionShutdownError) Unwrap() error { return e.cause }

// ConnectionUnavailableError is returned when the pool could not establish a
// connection within its limits, or the transport refused to dial.
type ConnectionUnavailableError struct {
	cause error
}

func newConnectionUnavailableError(cause error) *ConnectionUnavailableError {
	return &ConnectionUnavailableError{cause: errors.WithStack(cause)}
}

func (e *ConnectionUnavailableError) Error() string {
	return "memcache: connection unavailable: " + e.cause.Error()
}

func (e *ConnectionUnavailableError) Unwrap() error { return e.cause }

// ProtocolError wraps an unexpected return code, a malformed response, or an
// unconvertible value payload.
type ProtocolError struct {
	cause error
}

func newProtocolError(cause error) *ProtocolError {
	return &ProtocolError{cause: errors.WithStack(cause)}
}

func (e *ProtocolError) Error() string {
	return "memcache: protocol error: " + e.cause.Error()
}

func (e *ProtocolError) Unwrap() error { return e.cause }

// KeyNotFoundError reports a missing key on a command that demands
// presence: NF from delete and arithmetic, NS from replace, append and
// prepend, EN from touch.
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return "memcache: key not found: " + e.Key
}

// KeyExistsError is NS from add.
type KeyExistsError struct {
	Key string
}

func (e *KeyExistsError) Error() string {
	return "memcache: key exists: " + e.Key
}

// DecoderError is a framing violation. It is always fatal for the
// connection that produced it.
type DecoderError struct {
	cause error
}

func newDecoderError(cause error) *DecoderError {
	return &DecoderError{cause: errors.WithStack(cause)}
}

func (e *DecoderError) Error() string {
	return "memcache: decoder error: " + e.cause.Error()
}

func (e *DecoderError) Unwrap() error { return e.cause }

// fatal reports whether err must retire the connection that produced it:
// anything other than a well-formed command-level outcome (KeyNotFound,
// KeyExists) poisons the protocol state machine.
func fatal(err error) bool {
	if err == nil {
		return false
	}
	var knf *KeyNotFoundError
	var ke *KeyExistsError
	if errors.As(err, &knf) || errors.As(err, &ke) {
		return false
	}
	return true
}
