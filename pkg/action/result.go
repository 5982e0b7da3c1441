package action

import (
	"github.com/rs/zerolog"
)

// TaskResult records one sub-operation of an action, usually one launch
type TaskResult struct {
	Operation string
	Node      string
	Target    string
	Replicas  int
	Success   bool
	Detail    string
	Err       error
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler
func (r TaskResult) MarshalZerologObject(e *zerolog.Event) {
	e.Str("operation", r.Operation).Bool("success", r.Success)
	if r.Node != "" {
		e.Str("node", r.Node)
	}
	if r.Target != "" {
		e.Str("target", r.Target)
	}
	if r.Replicas > 0 {
		e.Int("replicas", r.Replicas)
	}
	if r.Detail != "" {
		e.Str("detail", r.Detail)
	}
	if r.Err != nil {
		e.Str("error", r.Err.Error())
	}
}

// Result is the aggregated outcome of one action execution
type Result struct {
	Action  string
	Success bool
	Tasks   []TaskResult
	Err     error
}

// NewResult aggregates task results: the action succeeds only when every task did
func NewResult(name string, tasks ...TaskResult) Result {
	r := Result{Action: name, Success: true, Tasks: tasks}
	for _, t := range tasks {
		if !t.Success {
			r.Success = false
		}
	}
	return r
}

// Failed builds a result for an action that errored before or while running
func Failed(name string, err error) Result {
	return Result{Action: name, Success: false, Err: err}
}

// Status is the user-facing outcome word
func (r Result) Status() string {
	if r.Success {
		return "SUCCESS"
	}
	return "FAILURE"
}

// Counts returns the number of successful and failed tasks
func (r Result) Counts() (succeeded, failed int) {
	for _, t := range r.Tasks {
		if t.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

type taskArray []TaskResult

func (a taskArray) MarshalZerologArray(arr *zerolog.Array) {
	for _, t := range a {
		arr.Object(t)
	}
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler
func (r Result) MarshalZerologObject(e *zerolog.Event) {
	succeeded, failed := r.Counts()
	e.Str("action", r.Action).
		Str("status", r.Status()).
		Int("succeeded", succeeded).
		Int("failed", failed)
	if len(r.Tasks) > 0 {
		e.Array("details", taskArray(r.Tasks))
	}
	if r.Err != nil {
		e.Str("error", r.Err.Error())
	}
}
