package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrTimeout      = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrDownloadNotFound   = fmt.Errorf("download not found")
	ErrOperationPanicked  = fmt.Errorf("operation panicked")

	// Client state errors
	ErrRetryInProgress = fmt.Errorf("retry already in progress")
	ErrPollerStopped   = fmt.Errorf("poller stopped")
	ErrSessionClosed   = fmt.Errorf("search session closed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
