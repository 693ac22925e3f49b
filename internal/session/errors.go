// internal/session/errors.go
package session

import "errors"

// Transport errors
var (
	// ErrReceiveTimeout indicates no message arrived within the wait bound.
	// Not a failure: the caller proceeds to its next step.
	ErrReceiveTimeout = errors.New("receive timed out")

	// ErrNotConnected indicates a send or receive on a closed transport
	ErrNotConnected = errors.New("transport is not connected")

	// ErrConnectionClosed indicates the peer closed the connection
	ErrConnectionClosed = errors.New("connection closed")
)

// Configuration errors
var (
	// ErrInvalidEndpoint indicates the coordinator address can never yield a
	// working transport. Fatal: surfaced to the operator, never retried.
	ErrInvalidEndpoint = errors.New("coordinator endpoint is not a valid ws:// or wss:// URL")
)
