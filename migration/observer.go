package migration

import (
	"context"
	"time"
)

// Operation is the kind of an engine run.
type Operation string

// Operations.
const (
	OpApply    Operation = "apply"
	OpRollback Operation = "rollback"
)

// Report describes an engine run. It's passed to observers, and returned to
// the caller of Apply and Rollback.
type Report struct {
	// RunID uniquely identifies the run. It's attached to every audit entry
	// written during the run.
	RunID     string
	Operation Operation
	DryRun    bool
	// Selected are the IDs requested by the caller.
	Selected []string
	// Targets are the IDs the run intends to execute, in execution order. It's
	// empty if there was nothing to do.
	Targets []string
	// Executed are the IDs whose step ran successfully, or would have in a dry
	// run.
	Executed []string
	// Skipped are the IDs of rollback targets without a down step.
	Skipped []string
	// Failed is the ID of the migration whose step failed, if any.
	Failed string

	Started  time.Time
	Finished time.Time
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Observer is notified before and after each engine run that acquired the
// run lock. Observers must not block.
type Observer interface {
	RunStarted(ctx context.Context, r *Report)
	// RunFinished is called once the run completes, with the error the run
	// returned, if any.
	RunFinished(ctx context.Context, r *Report, err error)
}

// StepObserver is implemented by observers that also want to be notified
// after each migration step runs, successfully or not. It's not called for
// dry runs.
type StepObserver interface {
	StepFinished(ctx context.Context, r *Report, id string, elapsed time.Duration, err error)
}

// ObserverFuncs adapts plain functions to the Observer interface. Nil fields
// are ignored.
type ObserverFuncs struct {
	Started  func(ctx context.Context, r *Report)
	Finished func(ctx context.Context, r *Report, err error)
}

var _ Observer = ObserverFuncs{}

// RunStarted implements Observer.
func (o ObserverFuncs) RunStarted(ctx context.Context, r *Report) {
	if o.Started != nil {
		o.Started(ctx, r)
	}
}

// RunFinished implements Observer.
func (o ObserverFuncs) RunFinished(ctx context.Context, r *Report, err error) {
	if o.Finished != nil {
		o.Finished(ctx, r, err)
	}
}
