package domain

import (
	"fmt"
	"strings"
)

// MissingInputError reports an upstream field file the pipeline expected but
// could not find. It scopes the failure to one (model, parameter) pair so a
// batch can skip the affected items and keep going.
type MissingInputError struct {
	Model     string
	Parameter string
	Path      string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input: no %s field for model %s at %s", e.Parameter, e.Model, e.Path)
}

// MissingParameterError reports a field file that exists but does not carry
// the requested parameter variable.
type MissingParameterError struct {
	Parameter string
	Available []string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("parameter %s not in field file (have: %s)", e.Parameter, strings.Join(e.Available, ", "))
}

// InsufficientOverlapError reports that the short-range and mid-range runs
// share fewer valid times than the blend window needs. Typical when one
// model's run is stale relative to the other.
type InsufficientOverlapError struct {
	Overlap  int
	Required int
	Reason   string // optional context, e.g. the horizons that failed to meet
}

func (e *InsufficientOverlapError) Error() string {
	msg := fmt.Sprintf("insufficient overlap between model runs: %d shared valid times, need %d", e.Overlap, e.Required)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// RemoteTransmissionError reports that an artifact could not be delivered to
// the remote server after all attempts. The artifact must not be marked
// published locally when this is returned.
type RemoteTransmissionError struct {
	Name     string
	Attempts int
	Err      error
}

func (e *RemoteTransmissionError) Error() string {
	return fmt.Sprintf("remote transmission of %s failed after %d attempt(s): %v", e.Name, e.Attempts, e.Err)
}

func (e *RemoteTransmissionError) Unwrap() error { return e.Err }
