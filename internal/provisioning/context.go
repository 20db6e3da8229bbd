package provisioning

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/imamik/proxk8s/internal/addons/k8sclient"
	"github.com/imamik/proxk8s/internal/config"
	"github.com/imamik/proxk8s/internal/feature"
	"github.com/imamik/proxk8s/internal/reconcile"
	"github.com/imamik/proxk8s/internal/util/retry"
)

// State holds results that later phases need. It is safe for concurrent use.
type State struct {
	mu         sync.Mutex
	vmids      map[string]int
	kubeconfig []byte
}

// NewState creates an empty provisioning state.
func NewState() *State {
	return &State{vmids: make(map[string]int)}
}

// SetVMID records the VM backing node.
func (s *State) SetVMID(node string, vmid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vmids[node] = vmid
}

// VMID returns the VM backing node.
func (s *State) VMID(node string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.vmids[node]
	return id, ok
}

// SetKubeconfig stores the admin kubeconfig.
func (s *State) SetKubeconfig(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kubeconfig = b
}

// Kubeconfig returns the admin kubeconfig, if one was fetched this run.
func (s *State) Kubeconfig() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kubeconfig
}

// Context wraps all dependencies and state needed for a provisioning phase.
type Context struct {
	context.Context
	Config   *config.Config
	Gates    feature.Gates
	State    *State
	Observer Observer
	Timeouts *config.Timeouts
	Report   *reconcile.Report
	Metrics  *Metrics

	// Hypervisor and Hosts are nil for the GitOps-only entry point.
	Hypervisor Hypervisor
	Hosts      HostDialer

	// NewKubeClient builds a cluster client from kubeconfig bytes.
	NewKubeClient func([]byte) (k8sclient.Client, error)

	kubeMu sync.Mutex
	kube   k8sclient.Client
}

// NewContext creates a new provisioning context with a console observer,
// an empty report and a fresh metrics registry.
func NewContext(ctx context.Context, cfg *config.Config, gates feature.Gates) *Context {
	timeouts := cfg.Timeouts
	if timeouts == nil {
		timeouts = config.LoadTimeouts()
	}
	return &Context{
		Context:       ctx,
		Config:        cfg,
		Gates:         gates,
		State:         NewState(),
		Observer:      NewConsoleObserver(),
		Timeouts:      timeouts,
		Report:        reconcile.NewReport(),
		Metrics:       NewMetrics(),
		NewKubeClient: k8sclient.NewFromKubeconfig,
	}
}

// Kube returns the cluster client, building it on first use from the
// kubeconfig fetched this run or, failing that, the configured file.
func (c *Context) Kube() (k8sclient.Client, error) {
	c.kubeMu.Lock()
	defer c.kubeMu.Unlock()
	if c.kube != nil {
		return c.kube, nil
	}

	kubeconfig := c.State.Kubeconfig()
	if len(kubeconfig) == 0 {
		b, err := os.ReadFile(c.Config.Cluster.KubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read kubeconfig: %w", err)
		}
		kubeconfig = b
	}

	client, err := c.NewKubeClient(kubeconfig)
	if err != nil {
		return nil, err
	}
	c.kube = client
	return client, nil
}

// Execute applies plan for phase with the configured parallelism. Every
// outcome is recorded in the report, emitted as an event and counted.
func (c *Context) Execute(phase string, plan *reconcile.Plan) error {
	exec := reconcile.NewExecutor(c.Config.Cluster.Forks, c.Report)
	exec.OnOutcome = func(o reconcile.Outcome) {
		LogOutcome(c.Observer, o)
		c.Metrics.ObserveOutcome(o)
	}
	return exec.Execute(c, phase, plan)
}

// Inspect runs a read against backend with bounded exponential backoff.
// Exhausted retries surface as a BackendUnreachableError; errors marked
// with retry.Fatal are returned on the first attempt.
func (c *Context) Inspect(backend string, read func() error) error {
	err := retry.WithExponentialBackoff(c, read,
		retry.WithMaxRetries(c.Timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.Timeouts.RetryInitialDelay),
	)
	if err == nil {
		return nil
	}
	if retry.IsFatal(err) {
		return err
	}
	return reconcile.Unreachable(backend, err)
}
