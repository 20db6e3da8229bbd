package addons

import (
	"context"
	"fmt"

	"github.com/imamik/proxk8s/internal/addons/k8sclient"
	"github.com/imamik/proxk8s/internal/feature"
	"github.com/imamik/proxk8s/internal/provisioning"
	"github.com/imamik/proxk8s/internal/reconcile"
)

// Phase names of the chart phases.
const (
	PhaseNetwork        = "network"
	PhaseStorageGPU     = "storage-gpu"
	PhaseGitOpsPlatform = "gitops-platform"
)

// KindInspection marks a failed read of an optional subsystem.
const KindInspection = "Inspection"

// chartPhase holds what every chart phase shares.
type chartPhase struct {
	// Render overrides chart rendering, for tests.
	Render RenderFunc
}

func (p chartPhase) installer(ctx *provisioning.Context, client k8sclient.Client) *Installer {
	kubeVersion := ""
	if ctx.Config.Infra != nil {
		kubeVersion = ctx.Config.Infra.Kubernetes.Version
	}
	return NewInstaller(client, Options{
		Cluster:      ctx.Config.Cluster.Name,
		KubeVersion:  kubeVersion,
		Rollout:      ctx.Timeouts.Rollout,
		PollInterval: ctx.Timeouts.PollInterval,
		Render:       p.Render,
	})
}

func (p chartPhase) plan(ctx *provisioning.Context, inst *Installer, charts ...Chart) (*reconcile.Plan, error) {
	var plan *reconcile.Plan
	err := ctx.Inspect("kubernetes", func() error {
		var err error
		plan, err = inst.Plan(ctx, charts...)
		return err
	})
	return plan, err
}

// NetworkPhase installs the CNI and the load-balancer controller.
type NetworkPhase struct{ chartPhase }

// NewNetworkPhase creates the network phase.
func NewNetworkPhase() *NetworkPhase { return &NetworkPhase{} }

// Name implements the provisioning.Phase interface.
func (p *NetworkPhase) Name() string { return PhaseNetwork }

// Provision implements the provisioning.Phase interface.
func (p *NetworkPhase) Provision(ctx *provisioning.Context) error {
	if ctx.Config.Infra == nil {
		return fmt.Errorf("network phase requires infrastructure configuration")
	}
	client, err := ctx.Kube()
	if err != nil {
		return err
	}
	charts, err := NetworkCharts(ctx.Config.Cluster.Name, ctx.Config.Infra)
	if err != nil {
		return err
	}
	plan, err := p.plan(ctx, p.installer(ctx, client), charts...)
	if err != nil {
		return err
	}
	return ctx.Execute(PhaseNetwork, plan)
}

// StorageGPUPhase installs the optional storage and GPU subsystems. Each
// runs only when its gate is enabled, and failures never fail the phase.
type StorageGPUPhase struct{ chartPhase }

// NewStorageGPUPhase creates the storage/GPU phase.
func NewStorageGPUPhase() *StorageGPUPhase { return &StorageGPUPhase{} }

// Name implements the provisioning.Phase interface.
func (p *StorageGPUPhase) Name() string { return PhaseStorageGPU }

// Provision implements the provisioning.Phase interface.
func (p *StorageGPUPhase) Provision(ctx *provisioning.Context) error {
	plan := &reconcile.Plan{}

	_ = ctx.Gates.Storage.Run(func(s feature.StorageSettings) error {
		p.planSubsystem(ctx, feature.SubsystemStorage, plan, func(client k8sclient.Client) (*reconcile.Plan, error) {
			workers, err := client.CountWorkers(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to count workers: %w", err)
			}
			c, err := StorageChart(s, workers)
			if err != nil {
				return nil, err
			}
			ctx.Observer.Printf("[%s] NFS provisioner replicas: %d (%d workers)", PhaseStorageGPU, ProvisionerReplicas(workers), workers)
			return p.plan(ctx, p.installer(ctx, client), c)
		})
		return nil
	})

	_ = ctx.Gates.GPU.Run(func(g feature.GPUSettings) error {
		p.planSubsystem(ctx, feature.SubsystemGPU, plan, func(client k8sclient.Client) (*reconcile.Plan, error) {
			c, err := GPUChart()
			if err != nil {
				return nil, err
			}
			sub, err := p.plan(ctx, p.installer(ctx, client), c)
			if err != nil {
				return nil, err
			}
			sub.Add(PluginScheduling(ctx, client, g, ctx.Timeouts.PollInterval, ctx.Timeouts.PluginPod))
			return sub, nil
		})
		return nil
	})

	if len(plan.Actions) == 0 {
		return nil
	}
	return reconcile.FatalErrors(ctx.Execute(PhaseStorageGPU, plan))
}

// planSubsystem appends the subsystem's actions to plan. A planning error
// becomes a failing action of that subsystem so it is reported in isolation.
func (p *StorageGPUPhase) planSubsystem(ctx *provisioning.Context, subsystem string, plan *reconcile.Plan, build func(k8sclient.Client) (*reconcile.Plan, error)) {
	var sub *reconcile.Plan
	client, err := ctx.Kube()
	if err == nil {
		sub, err = build(client)
	}
	if err != nil {
		planErr := err
		plan.Add(reconcile.Action{
			Kind: KindInspection, Target: subsystem, Name: subsystem,
			Type: reconcile.ActionUpdate, Subsystem: subsystem,
			Apply: func(context.Context) error { return planErr },
		})
		return
	}
	plan.Actions = append(plan.Actions, sub.Actions...)
}

// GitOpsPlatformPhase installs Argo CD.
type GitOpsPlatformPhase struct{ chartPhase }

// NewGitOpsPlatformPhase creates the gitops-platform phase.
func NewGitOpsPlatformPhase() *GitOpsPlatformPhase { return &GitOpsPlatformPhase{} }

// Name implements the provisioning.Phase interface.
func (p *GitOpsPlatformPhase) Name() string { return PhaseGitOpsPlatform }

// Provision implements the provisioning.Phase interface.
func (p *GitOpsPlatformPhase) Provision(ctx *provisioning.Context) error {
	client, err := ctx.Kube()
	if err != nil {
		return err
	}
	c, err := ArgoCDChart(ctx.Config.GitOps)
	if err != nil {
		return err
	}
	plan, err := p.plan(ctx, p.installer(ctx, client), c)
	if err != nil {
		return err
	}
	return ctx.Execute(PhaseGitOpsPlatform, plan)
}
