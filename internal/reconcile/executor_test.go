package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_NoopNeverCallsApply(t *testing.T) {
	t.Parallel()
	called := false
	exec := NewExecutor(2, nil)
	plan := &Plan{}
	plan.Add(Action{Kind: "Package", Target: "node-1", Name: "curl", Type: ActionNoop, Apply: func(context.Context) error {
		called = true
		return nil
	}})

	require.NoError(t, exec.Execute(context.Background(), "os-prep", plan))
	assert.False(t, called)
	assert.Equal(t, 1, exec.Report.Count(StatusUnchanged))
	assert.True(t, exec.Report.Converged())
}

func TestExecutor_ClassifiesResults(t *testing.T) {
	t.Parallel()
	backendErr := errors.New("500 internal")
	exec := NewExecutor(4, NewReport())
	plan := &Plan{}
	plan.Add(Action{Kind: "ConfigMap", Target: "a", Type: ActionCreate, Apply: func(context.Context) error { return nil }})
	plan.Add(Action{Kind: "ConfigMap", Target: "b", Type: ActionCreate, Apply: func(context.Context) error {
		return fmt.Errorf("create: %w", ErrResourceConflict)
	}})
	plan.Add(Action{Kind: "KeyPair", Target: "c", Type: ActionCreate, Apply: func(context.Context) error {
		return ErrIrreversibleActionSkipped
	}})
	plan.Add(Action{Kind: "DeployKey", Target: "d", Type: ActionCreate, Desired: "SHA256:x", Observed: "none", Apply: func(context.Context) error {
		return backendErr
	}})

	err := exec.Execute(context.Background(), "gitops", plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, backendErr)

	var resErr *ResourceError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, "DeployKey", resErr.Kind)
	assert.Contains(t, resErr.Error(), `desired="SHA256:x"`)

	report := exec.Report
	assert.Equal(t, 1, report.Count(StatusChanged))
	assert.Equal(t, 1, report.Count(StatusConflict))
	assert.Equal(t, 1, report.Count(StatusSkipped))
	assert.Equal(t, 1, report.Count(StatusFailed))
	assert.Len(t, report.Failures(), 1)
	assert.ErrorIs(t, report.Err(), backendErr)
}

func TestExecutor_FailureDoesNotStopOtherTargets(t *testing.T) {
	t.Parallel()
	var ran atomic.Int32
	exec := NewExecutor(1, NewReport())
	plan := &Plan{}
	plan.Add(Action{Kind: "Package", Target: "node-1", Type: ActionCreate, Apply: func(context.Context) error {
		return errors.New("apt lock held")
	}})
	plan.Add(Action{Kind: "Module", Target: "node-1", Type: ActionCreate, Apply: func(context.Context) error {
		ran.Add(100)
		return nil
	}})
	plan.Add(Action{Kind: "Package", Target: "node-2", Type: ActionCreate, Apply: func(context.Context) error {
		ran.Add(1)
		return nil
	}})

	err := exec.Execute(context.Background(), "os-prep", plan)
	require.Error(t, err)
	assert.Equal(t, int32(1), ran.Load())

	statuses := map[string][]Status{}
	for _, o := range exec.Report.Outcomes() {
		statuses[o.Target] = append(statuses[o.Target], o.Status)
	}
	assert.Equal(t, []Status{StatusFailed, StatusSkipped}, statuses["node-1"])
	assert.Equal(t, []Status{StatusChanged}, statuses["node-2"])
}

func TestExecutor_SameTargetRunsInOrder(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var order []string
	step := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	exec := NewExecutor(8, nil)
	plan := &Plan{}
	plan.Add(Action{Target: "gpu-1", Name: "install", Type: ActionCreate, Apply: step("install")})
	plan.Add(Action{Target: "gpu-1", Name: "reboot", Type: ActionCreate, Apply: step("reboot")})

	require.NoError(t, exec.Execute(context.Background(), "os-prep", plan))
	assert.Equal(t, []string{"install", "reboot"}, order)
}

func TestExecutor_OptionalSubsystemFailure(t *testing.T) {
	t.Parallel()
	exec := NewExecutor(1, nil)
	var seen []Outcome
	exec.OnOutcome = func(o Outcome) { seen = append(seen, o) }
	plan := &Plan{}
	plan.Add(Action{Kind: "HelmRelease", Target: "nfs", Type: ActionUpdate, Subsystem: "storage", Apply: func(context.Context) error {
		return errors.New("chart not found")
	}})

	err := exec.Execute(context.Background(), "storage-gpu", plan)
	require.Error(t, err)
	assert.True(t, IsOptionalSubsystemFailure(err))
	require.Len(t, seen, 1)
	assert.Equal(t, "storage", seen[0].Subsystem)
}

func TestExecutor_CancelledContextSkips(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var called atomic.Bool
	exec := NewExecutor(1, nil)
	plan := &Plan{}
	plan.Add(Action{Target: "a", Type: ActionCreate, Apply: func(context.Context) error {
		called.Store(true)
		return nil
	}})

	require.NoError(t, exec.Execute(ctx, "p", plan))
	assert.False(t, called.Load())
	assert.Equal(t, 1, exec.Report.Count(StatusSkipped))
}

func TestErrorsHelpers(t *testing.T) {
	t.Parallel()
	cause := errors.New("dial tcp: timeout")
	err := fmt.Errorf("listing VMs: %w", Unreachable("proxmox", cause))

	assert.True(t, IsBackendUnreachable(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "proxmox unreachable")
	assert.NoError(t, Unreachable("proxmox", nil))
	assert.False(t, IsOptionalSubsystemFailure(err))
}

func TestReport_WarningIsNotConverged(t *testing.T) {
	t.Parallel()
	r := NewReport()
	r.Record(Outcome{Kind: "DeployKey", Target: "gitlab.com/lab/apps", Status: StatusWarning, Err: errors.New("403 forbidden")})

	assert.False(t, r.Converged())
	assert.Equal(t, "403 forbidden", r.Outcomes()[0].Message)
	assert.EqualError(t, r.Err(), "403 forbidden")
}

func TestExecutor_WarningDoesNotFailTarget(t *testing.T) {
	t.Parallel()
	exec := NewExecutor(1, nil)
	plan := &Plan{}
	plan.Add(Action{Kind: "DeployKey", Target: "repo", Type: ActionCreate, Apply: func(context.Context) error {
		return Warning(errors.New("401 unauthorized"))
	}})
	plan.Add(Action{Kind: "Secret", Target: "repo", Type: ActionCreate, Apply: func(context.Context) error {
		return nil
	}})

	require.NoError(t, exec.Execute(context.Background(), "gitops", plan))
	assert.Equal(t, 1, exec.Report.Count(StatusWarning))
	assert.Equal(t, 1, exec.Report.Count(StatusChanged))
	assert.False(t, exec.Report.Converged())
	assert.Nil(t, Warning(nil))
}

func TestFatalErrors(t *testing.T) {
	t.Parallel()

	exec := NewExecutor(4, nil)
	plan := &Plan{}
	fail := func(context.Context) error { return errors.New("boom") }
	plan.Add(Action{Kind: "Chart", Target: "storage", Type: ActionCreate, Subsystem: "storage", Apply: fail})
	plan.Add(Action{Kind: "Package", Target: "node-1", Type: ActionCreate, Apply: fail})

	err := exec.Execute(context.Background(), "test", plan)
	require.Error(t, err)

	fatal := FatalErrors(err)
	require.Error(t, fatal)
	assert.False(t, IsOptionalSubsystemFailure(fatal))
	assert.Contains(t, fatal.Error(), "Package node-1")

	optionalOnly := &Plan{}
	optionalOnly.Add(Action{Kind: "Chart", Target: "gpu", Type: ActionCreate, Subsystem: "gpu", Apply: fail})
	err = NewExecutor(1, nil).Execute(context.Background(), "test", optionalOnly)
	require.Error(t, err)
	assert.NoError(t, FatalErrors(err))
	assert.NoError(t, FatalErrors(nil))
}
