package transfer

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled marks an execution stopped through its context.
	ErrCancelled = errors.New("transfer cancelled")
	// ErrBusy is returned when a submission is attempted while another one is in flight.
	ErrBusy = errors.New("a transfer is already in progress")
)

// ValidationError reports a request that was rejected before any external call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Reason classifies an execution failure.
type Reason string

const (
	ReasonRouterFailure Reason = "router_failure"
	ReasonCancelled     Reason = "cancelled"
)

// ExecutionError reports a transfer that failed after execution started.
// Steps reported before the failure are not undone.
type ExecutionError struct {
	Reason Reason
	// Step is the number of progress events delivered before the failure.
	Step int
	Err  error
}

func (e *ExecutionError) Error() string {
	if e.Reason == ReasonCancelled {
		return fmt.Sprintf("transfer cancelled after %d step(s): %v", e.Step, e.Err)
	}
	return fmt.Sprintf("transfer failed after %d step(s): %v", e.Step, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrCancelled) match every cancelled execution.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrCancelled && e.Reason == ReasonCancelled
}
