package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/proxk8s/internal/addons"
	"github.com/imamik/proxk8s/internal/addons/k8sclient"
	"github.com/imamik/proxk8s/internal/config"
	"github.com/imamik/proxk8s/internal/feature"
	"github.com/imamik/proxk8s/internal/gitops"
	"github.com/imamik/proxk8s/internal/platform/proxmox"
	"github.com/imamik/proxk8s/internal/provisioning"
	"github.com/imamik/proxk8s/internal/provisioning/cluster"
	"github.com/imamik/proxk8s/internal/provisioning/compute"
	"github.com/imamik/proxk8s/internal/provisioning/osprep"
	"github.com/imamik/proxk8s/internal/reconcile"
)

// Exit codes of an invocation.
const (
	ExitConverged = 0
	ExitFatal     = 1
	ExitDegraded  = 2
)

// ErrNoInfrastructure is returned by Full when the config was resolved for
// the GitOps scope only.
var ErrNoInfrastructure = errors.New("full run requires infrastructure configuration")

// Backends are the external systems a run talks to. Hypervisor and Hosts
// may be nil for GitOps-only runs.
type Backends struct {
	Hypervisor    provisioning.Hypervisor
	Hosts         provisioning.HostDialer
	NewKubeClient func([]byte) (k8sclient.Client, error)
	Observer      provisioning.Observer
}

// NewBackends builds the Proxmox and SSH backends from cfg. transcript
// receives every remote command per host.
func NewBackends(cfg *config.Config, transcript provisioning.TranscriptFunc) (Backends, error) {
	b := Backends{NewKubeClient: k8sclient.NewFromKubeconfig}
	if cfg.Infra == nil {
		return b, nil
	}
	p := cfg.Infra.Proxmox
	b.Hypervisor = proxmox.NewClient(proxmox.Config{
		Host:        p.Host,
		Node:        p.Node,
		TokenID:     p.TokenID,
		TokenSecret: p.TokenSecret,
		VerifyTLS:   p.VerifyTLS,
	})
	hosts, err := provisioning.NewSSHDialer(cfg.Infra.SSH, transcript)
	if err != nil {
		return Backends{}, err
	}
	b.Hosts = hosts
	return b, nil
}

// Result is the outcome of one invocation.
type Result struct {
	Scope   config.Scope
	Report  *reconcile.Report
	Metrics *provisioning.Metrics
	// Err is the fatal error that stopped the run, if any.
	Err     error
	Elapsed time.Duration
	// Kubeconfig is the admin kubeconfig fetched during the run.
	Kubeconfig []byte
}

// ExitCode maps the result to the process exit code.
func (r Result) ExitCode() int {
	switch {
	case r.Err != nil:
		return ExitFatal
	case r.Report != nil && !r.Report.Converged():
		return ExitDegraded
	default:
		return ExitConverged
	}
}

// Reconciler runs the entry points.
type Reconciler struct {
	config   *config.Config
	gates    feature.Gates
	backends Backends

	// FullPhases and GitOpsPhases are the phase lists of each entry point.
	FullPhases   []provisioning.Phase
	GitOpsPhases []provisioning.Phase
}

// NewReconciler creates a Reconciler with the default phase lists.
func NewReconciler(cfg *config.Config, gates feature.Gates, backends Backends) *Reconciler {
	return &Reconciler{
		config:   cfg,
		gates:    gates,
		backends: backends,
		FullPhases: []provisioning.Phase{
			compute.NewProvisioner(),
			osprep.NewProvisioner(),
			cluster.NewControlPlaneProvisioner(),
			cluster.NewWorkersProvisioner(),
			addons.NewNetworkPhase(),
			addons.NewStorageGPUPhase(),
			addons.NewGitOpsPlatformPhase(),
			gitops.NewPhase(),
		},
		GitOpsPhases: []provisioning.Phase{
			gitops.NewPhase(),
		},
	}
}

// Full converges the whole stack from VMs to GitOps Applications.
func (r *Reconciler) Full(ctx context.Context) Result {
	if r.config.Infra == nil {
		return Result{Scope: config.ScopeFull, Report: reconcile.NewReport(), Err: ErrNoInfrastructure}
	}
	return r.run(ctx, config.ScopeFull, r.FullPhases)
}

// GitOpsOnly converges the GitOps resources of an existing cluster.
func (r *Reconciler) GitOpsOnly(ctx context.Context) Result {
	return r.run(ctx, config.ScopeGitOps, r.GitOpsPhases)
}

func (r *Reconciler) run(ctx context.Context, scope config.Scope, phases []provisioning.Phase) Result {
	start := time.Now()
	pCtx := provisioning.NewContext(ctx, r.config, r.gates)
	pCtx.Hypervisor = r.backends.Hypervisor
	pCtx.Hosts = r.backends.Hosts
	if r.backends.NewKubeClient != nil {
		pCtx.NewKubeClient = r.backends.NewKubeClient
	}
	if r.backends.Observer != nil {
		pCtx.Observer = r.backends.Observer
	}
	pCtx.Observer = pCtx.Observer.WithFields(map[string]string{
		"cluster": r.config.Cluster.Name,
		"scope":   scope.String(),
	})

	err := provisioning.NewPipeline(phases...).Run(pCtx)
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("run interrupted: %w", ctx.Err())
	}

	return Result{
		Scope:      scope,
		Report:     pCtx.Report,
		Metrics:    pCtx.Metrics,
		Err:        err,
		Elapsed:    time.Since(start),
		Kubeconfig: pCtx.State.Kubeconfig(),
	}
}

// SetObserver replaces the observer of later runs.
func (r *Reconciler) SetObserver(o provisioning.Observer) {
	r.backends.Observer = o
}

// PhaseNames lists the phases the entry point for scope runs.
func (r *Reconciler) PhaseNames(scope config.Scope) []string {
	phases := r.FullPhases
	if scope == config.ScopeGitOps {
		phases = r.GitOpsPhases
	}
	names := make([]string, 0, len(phases))
	for _, p := range phases {
		names = append(names, p.Name())
	}
	return names
}
