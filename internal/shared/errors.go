package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig  = fmt.Errorf("configuration not found")
	ErrInvalidConfig  = fmt.Errorf("invalid configuration")
	ErrUnknownSetting = fmt.Errorf("unknown setting")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrJobNotFound        = fmt.Errorf("job not found")
	ErrJobNotCompleted    = fmt.Errorf("job not completed yet")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Tracking errors
	ErrMalformedEvent  = fmt.Errorf("malformed stream event")
	ErrStreamClosed    = fmt.Errorf("event stream closed")
	ErrRetryExhausted  = fmt.Errorf("reconnect attempts exhausted")
	ErrPipelineFailed  = fmt.Errorf("pipeline failed")
	ErrTrackerStopped  = fmt.Errorf("tracker stopped")
	ErrNoRetryableJob  = fmt.Errorf("no uploaded files to retry with")
	ErrRecordNotFound  = fmt.Errorf("record not found")
	ErrAlreadyTracking = fmt.Errorf("tracker already started")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
