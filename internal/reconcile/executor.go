package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/proxk8s/internal/util/async"
)

// Executor applies plans against live backends.
type Executor struct {
	// Forks bounds how many targets are worked on at once.
	Forks int
	// Report receives every outcome.
	Report *Report
	// OnOutcome, if set, is called after each outcome is recorded.
	// It may be called concurrently.
	OnOutcome func(Outcome)
}

// NewExecutor creates an executor that records into report.
func NewExecutor(forks int, report *Report) *Executor {
	if report == nil {
		report = NewReport()
	}
	return &Executor{Forks: forks, Report: report}
}

// Execute applies plan for phase. Noop actions are recorded as unchanged
// without calling Apply. Actions on one target run in plan order; once one
// fails, the remaining actions on that target are skipped. The returned
// error joins every failure of this plan.
func (e *Executor) Execute(ctx context.Context, phase string, plan *Plan) error {
	if plan == nil {
		return nil
	}

	groups := plan.targets()
	tasks := make([]async.Task, 0, len(groups))
	for _, group := range groups {
		tasks = append(tasks, async.Task{
			Name: group[0].Target,
			Func: func(ctx context.Context) error {
				return e.runTarget(ctx, phase, group)
			},
		})
	}
	return async.RunBounded(ctx, e.Forks, tasks)
}

func (e *Executor) runTarget(ctx context.Context, phase string, actions []Action) error {
	var failure error
	for _, a := range actions {
		if failure != nil {
			e.record(Outcome{
				Phase: phase, Kind: a.Kind, Target: a.Target, Name: a.Name,
				Action: a.Type, Status: StatusSkipped, Subsystem: a.Subsystem,
				Message: "blocked by an earlier failure on the same target",
			})
			continue
		}
		if err := e.apply(ctx, phase, a); err != nil {
			failure = err
		}
	}
	return failure
}

func (e *Executor) apply(ctx context.Context, phase string, a Action) error {
	outcome := Outcome{
		Phase:     phase,
		Kind:      a.Kind,
		Target:    a.Target,
		Name:      a.Name,
		Action:    a.Type,
		Subsystem: a.Subsystem,
	}

	if a.Type == ActionNoop || a.Apply == nil {
		outcome.Status = StatusUnchanged
		e.record(outcome)
		return nil
	}

	if err := ctx.Err(); err != nil {
		outcome.Status = StatusSkipped
		outcome.Message = fmt.Sprintf("not started: %v", err)
		e.record(outcome)
		return nil
	}

	start := time.Now()
	err := a.Apply(ctx)
	outcome.Duration = time.Since(start)

	switch {
	case err == nil:
		outcome.Status = StatusChanged
	case errors.Is(err, ErrResourceConflict):
		outcome.Status = StatusConflict
		outcome.Message = err.Error()
	case errors.Is(err, ErrIrreversibleActionSkipped):
		outcome.Status = StatusSkipped
		outcome.Message = err.Error()
	case errors.As(err, new(*WarningError)):
		outcome.Status = StatusWarning
		outcome.Message = err.Error()
	default:
		var wrapped error = &ResourceError{
			Kind: a.Kind, Target: a.Target, Name: a.Name,
			Desired: a.Desired, Observed: a.Observed, Err: err,
		}
		if a.Subsystem != "" {
			wrapped = &OptionalSubsystemFailure{Subsystem: a.Subsystem, Err: wrapped}
		}
		outcome.Status = StatusFailed
		outcome.Err = wrapped
		e.record(outcome)
		return wrapped
	}

	e.record(outcome)
	return nil
}

func (e *Executor) record(o Outcome) {
	e.Report.Record(o)
	if e.OnOutcome != nil {
		e.OnOutcome(o)
	}
}
