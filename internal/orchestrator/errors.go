package orchestrator

import (
	"errors"
	"fmt"
)

// ApologyReply is returned to the user when the pipeline fails.
const ApologyReply = "I apologize, but I encountered an error while processing your request. Please try again later."

// ErrNoResults is the cause of a DispatchError when nothing was dispatched.
var ErrNoResults = errors.New("no specialist results")

// ErrNoResponse is returned when a completer reports success without a
// response.
var ErrNoResponse = errors.New("completion service returned no response")

// DispatchError reports a failed specialist call.
type DispatchError struct {
	Specialist string
	Err        error
}

func (e *DispatchError) Error() string {
	if e.Specialist == "" {
		return fmt.Sprintf("dispatch: %v", e.Err)
	}
	return fmt.Sprintf("dispatch %s: %v", e.Specialist, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// SynthesisError reports a failed synthesis call.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
