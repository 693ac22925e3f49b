// internal/config/errors.go
package config

import "errors"

// Configuration errors
var (
	// ErrMissingCoordinator indicates no coordinator URL was configured
	ErrMissingCoordinator = errors.New("coordinator URL is required")

	// ErrInvalidCoordinator indicates the coordinator URL could not be parsed
	// or uses a scheme other than ws:// or wss://
	ErrInvalidCoordinator = errors.New("coordinator URL must be a ws:// or wss:// address")

	// ErrInvalidInterval indicates the heartbeat interval is too short
	ErrInvalidInterval = errors.New("heartbeat interval must be at least 1 second")

	// ErrInvalidBackoff indicates the backoff bounds are inconsistent
	ErrInvalidBackoff = errors.New("backoff base must be positive and no greater than backoff max")
)
