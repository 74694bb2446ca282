package stage

import (
	"time"

	"upapasta/internal/services"
)

// Status enumerates the terminal states of a single pipeline stage.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Result records what one stage produced. It is immutable once the stage
// completes and owned by the pipeline controller for one run only.
type Result struct {
	Stage     string
	Status    Status
	Outputs   []string
	Duration  time.Duration
	Message   string
	Simulated bool
}

// Succeeded builds a successful result with the produced output paths.
func Succeeded(name string, outputs ...string) Result {
	return Result{Stage: name, Status: StatusSucceeded, Outputs: outputs}
}

// Simulated builds a dry-run result: successful, marked simulated, carrying
// the paths the stage would have produced.
func Simulated(name string, predicted ...string) Result {
	return Result{Stage: name, Status: StatusSucceeded, Outputs: predicted, Simulated: true}
}

// Skipped builds a skipped result. Skipped stages contribute no outputs of
// their own; pass-through paths are carried explicitly by the controller.
func Skipped(name, message string) Result {
	return Result{Stage: name, Status: StatusSkipped, Message: message}
}

// Failed builds a failed result carrying the operator-facing diagnostic.
func Failed(name string, err error) Result {
	return Result{Stage: name, Status: StatusFailed, Message: services.Details(err)}
}

// WithDuration returns a copy of the result with the elapsed time set.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}
