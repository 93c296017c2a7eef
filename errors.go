package panelstart

import (
	"errors"
	"fmt"
)

// Errors returned or logged by the launch stages. Only ErrEntryPointMissing and
// ErrInterpreterMissing end a run; the others are reported and skipped.
var (
	// ErrEnvFileMissing indicates no env file was found at the project root
	ErrEnvFileMissing = errors.New("panelstart: env file missing")

	// ErrCredentialMissing indicates the bot token is not set anywhere
	ErrCredentialMissing = errors.New("panelstart: bot token missing")

	// ErrArtifactMissing indicates no sidecar jar was found
	ErrArtifactMissing = errors.New("panelstart: sidecar artifact missing")

	// ErrRuntimeMissing indicates no java executable was found
	ErrRuntimeMissing = errors.New("panelstart: java runtime missing")

	// ErrReadinessTimeout indicates the sidecar never answered the probe
	ErrReadinessTimeout = errors.New("panelstart: sidecar readiness not confirmed")

	// ErrEntryPointMissing indicates neither src/bot.py nor bot.py exists
	ErrEntryPointMissing = errors.New("panelstart: primary entry point missing")

	// ErrInterpreterMissing indicates no python interpreter was found
	ErrInterpreterMissing = errors.New("panelstart: python interpreter missing")

	// ErrUnsafePath indicates a flattened name would resolve outside the root
	ErrUnsafePath = errors.New("panelstart: unsafe relative path")
)

// StageError represents a failure inside one launch stage
type StageError struct {
	// Stage is the stage that failed
	Stage Stage
	// Path is the file path involved in the failure
	Path string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *StageError) Error() string {
	return fmt.Sprintf("panelstart %s %q: %v", e.Stage.String(), e.Path, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *StageError) Unwrap() error {
	return e.Err
}

// Warning is a non-fatal finding reported while resolving configuration
type Warning struct {
	Stage Stage
	Err   error
}

func (w Warning) String() string {
	return w.Err.Error()
}

// ExitError carries the exit status of a primary process run in attached mode
type ExitError struct {
	// Code is the child's exit status
	Code int
}

// Error returns a formatted error message
func (e *ExitError) Error() string {
	return fmt.Sprintf("panelstart: primary process exited with status %d", e.Code)
}

// MultiError aggregates independent failures, such as per-file layout moves
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred", len(m.Errors))
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// Unwrap exposes the aggregated errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
