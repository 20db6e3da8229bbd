package async

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes all tasks concurrently without a bound.
func RunParallel(ctx context.Context, tasks []Task) error {
	return RunBounded(ctx, 0, tasks)
}

// RunBounded executes tasks with at most limit running at once (limit <= 0
// means unbounded) and waits for all of them. Errors are joined in task
// order, each prefixed with the task name.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "cp-1", Func: prepareHost("cp-1")},
//	    {Name: "worker-1", Func: prepareHost("worker-1")},
//	}
//	if err := RunBounded(ctx, cfg.Cluster.Forks, tasks); err != nil {
//	    return err
//	}
func RunBounded(ctx context.Context, limit int, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	errs := make([]error, len(tasks))
	for i, task := range tasks {
		g.Go(func() error {
			if err := task.Func(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", task.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
