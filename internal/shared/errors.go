package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrReportNotFound     = fmt.Errorf("report not found")

	// Job lifecycle errors. Each one is terminal for the current attempt.
	ErrValidation   = fmt.Errorf("validation failed")
	ErrSubmission   = fmt.Errorf("submission failed")
	ErrPoll         = fmt.Errorf("status check failed")
	ErrJobFailed    = fmt.Errorf("processing failed")
	ErrPresentation = fmt.Errorf("artifact could not be displayed")
	ErrSuperseded   = fmt.Errorf("job superseded by a newer submission")
	ErrCanceled     = fmt.Errorf("job canceled")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
