package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed  = fmt.Errorf("authentication failed")
	ErrAuthExpired = fmt.Errorf("authorization expired, reconnect required")

	// Provider errors
	ErrProviderUnavailable = fmt.Errorf("provider unavailable")
	ErrProviderTimeout     = fmt.Errorf("provider call timed out")
	ErrUnknownPlatform     = fmt.Errorf("unknown platform")

	// Storage errors
	ErrNotFound = fmt.Errorf("not found")
	ErrConflict = fmt.Errorf("already exists")

	// Input validation errors
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrInvalidSyncRequest = fmt.Errorf("invalid sync request")
	ErrMissingArgument    = fmt.Errorf("missing required argument")
	ErrInvalidFlag        = fmt.Errorf("invalid flag value")
)
