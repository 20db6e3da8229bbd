package cluster

import (
	"fmt"

	"github.com/imamik/proxk8s/internal/nodelabels"
	"github.com/imamik/proxk8s/internal/provisioning"
	"github.com/imamik/proxk8s/internal/reconcile"
	"github.com/imamik/proxk8s/internal/util/labels"
)

// WorkersProvisioner joins workers and reconciles node labels.
type WorkersProvisioner struct{}

// NewWorkersProvisioner creates the workers phase.
func NewWorkersProvisioner() *WorkersProvisioner {
	return &WorkersProvisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *WorkersProvisioner) Name() string {
	return "workers"
}

// Provision implements the provisioning.Phase interface. Join failures are
// fatal; label failures are only reported.
func (p *WorkersProvisioner) Provision(ctx *provisioning.Context) error {
	infra := ctx.Config.Infra
	if infra == nil || ctx.Hosts == nil {
		return fmt.Errorf("worker join requires infrastructure configuration and host access")
	}

	if len(infra.Inventory.Workers) > 0 {
		firstHost, err := ctx.Hosts.Dial(infra.Inventory.ControlPlanes[0])
		if err != nil {
			return err
		}
		j := &joiner{first: firstHost}
		plan := &reconcile.Plan{}
		for _, node := range infra.Inventory.Workers {
			a, err := planJoin(ctx, j, node, false)
			if err != nil {
				return err
			}
			plan.Add(a)
		}
		if err := ctx.Execute(p.Name(), plan); err != nil {
			return err
		}
	}

	p.reconcileLabels(ctx)
	return nil
}

// reconcileLabels converges owned labels on every inventory node. Problems
// end up in the report and never fail the phase.
func (p *WorkersProvisioner) reconcileLabels(ctx *provisioning.Context) {
	record := func(err error) {
		ctx.Report.Record(reconcile.Outcome{
			Phase: p.Name(), Kind: nodelabels.Kind, Target: "cluster",
			Action: reconcile.ActionUpdate, Status: reconcile.StatusWarning, Err: err,
		})
		provisioning.LogValidationWarning(ctx.Observer, p.Name(), err.Error())
	}

	kube, err := ctx.Kube()
	if err != nil {
		record(fmt.Errorf("node labels not reconciled: %w", err))
		return
	}
	infra := ctx.Config.Infra
	r := nodelabels.NewReconciler(kube.Controller(), labels.ProtectedPrefixes(infra.Labels.ProtectedPrefixes))

	// Freshly joined kubelets register their Node asynchronously.
	if err := r.WaitRegistered(ctx, infra.AllNodes().Names(), ctx.Timeouts.PollInterval, ctx.Timeouts.NodeRegister); err != nil {
		ctx.Observer.Printf("[%s] %v", p.Name(), err)
	}

	var plan *reconcile.Plan
	err = ctx.Inspect("kubernetes", func() error {
		var err error
		plan, err = r.Plan(ctx, nodelabels.Desired(ctx.Config.Cluster.Name, infra, ctx.Gates))
		return err
	})
	if err != nil {
		record(fmt.Errorf("node labels not reconciled: %w", err))
		return
	}
	_ = ctx.Execute(p.Name(), plan)
}
