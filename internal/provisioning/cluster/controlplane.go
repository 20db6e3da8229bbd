package cluster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/imamik/proxk8s/internal/config"
	"github.com/imamik/proxk8s/internal/platform/ssh"
	"github.com/imamik/proxk8s/internal/provisioning"
	"github.com/imamik/proxk8s/internal/reconcile"
)

// ControlPlaneProvisioner initialises and grows the control plane.
type ControlPlaneProvisioner struct{}

// NewControlPlaneProvisioner creates the control-plane phase.
func NewControlPlaneProvisioner() *ControlPlaneProvisioner {
	return &ControlPlaneProvisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *ControlPlaneProvisioner) Name() string {
	return "control-plane"
}

// Provision implements the provisioning.Phase interface.
func (p *ControlPlaneProvisioner) Provision(ctx *provisioning.Context) error {
	infra := ctx.Config.Infra
	if infra == nil || ctx.Hosts == nil {
		return fmt.Errorf("control-plane bootstrap requires infrastructure configuration and host access")
	}
	cps := infra.Inventory.ControlPlanes
	first := cps[0]
	firstHost, err := ctx.Hosts.Dial(first)
	if err != nil {
		return err
	}

	initialised, err := hasFile(ctx, firstHost, AdminConf)
	if err != nil {
		return err
	}
	plan := &reconcile.Plan{}
	action := reconcile.Action{
		Kind: KindKubeadmInit, Target: first.Name, Name: first.Name,
		Type: reconcile.DecideEnsure(observedFile(initialised)), Desired: infra.Kubernetes.Version,
	}
	if !initialised {
		action.Apply = func(c context.Context) error {
			ctx.Observer.Printf("[%s] Initialising cluster on %s...", p.Name(), first.Name)
			if _, err := firstHost.Execute(c, initCommand(infra, first)); err != nil {
				return fmt.Errorf("kubeadm init failed: %w", err)
			}
			return nil
		}
	}
	plan.Add(action)
	if err := ctx.Execute(p.Name(), plan); err != nil {
		return err
	}

	if err := p.fetchKubeconfig(ctx, firstHost); err != nil {
		return err
	}

	// Control planes join one at a time to keep etcd membership changes
	// serial, so all join actions share one target.
	j := &joiner{first: firstHost}
	joins := &reconcile.Plan{}
	for _, node := range cps[1:] {
		a, err := planJoin(ctx, j, node, true)
		if err != nil {
			return err
		}
		a.Target = "control-plane"
		joins.Add(a)
	}
	return ctx.Execute(p.Name(), joins)
}

// fetchKubeconfig reads admin.conf, keeps it for later phases and writes it
// to the configured path.
func (p *ControlPlaneProvisioner) fetchKubeconfig(ctx *provisioning.Context, host provisioning.Host) error {
	var kubeconfig string
	err := ctx.Inspect("ssh", func() error {
		var err error
		kubeconfig, err = host.Execute(ctx, "cat "+ssh.Quote(AdminConf))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to fetch admin kubeconfig: %w", err)
	}
	ctx.State.SetKubeconfig([]byte(kubeconfig))

	path := ctx.Config.Cluster.KubeconfigPath
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create kubeconfig directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(kubeconfig), 0o600); err != nil {
		return fmt.Errorf("failed to write kubeconfig: %w", err)
	}
	ctx.Observer.Printf("[%s] Admin kubeconfig written to %s", p.Name(), path)
	return nil
}

// planJoin returns the join action for node.
func planJoin(ctx *provisioning.Context, j *joiner, node config.Node, controlPlane bool) (reconcile.Action, error) {
	host, err := ctx.Hosts.Dial(node)
	if err != nil {
		return reconcile.Action{}, err
	}
	joined, err := hasFile(ctx, host, KubeletConf)
	if err != nil {
		return reconcile.Action{}, err
	}
	action := reconcile.Action{
		Kind: KindKubeadmJoin, Target: node.Name, Name: node.Name,
		Type: reconcile.DecideEnsure(observedFile(joined)), Desired: "joined",
	}
	if !joined {
		action.Observed = "not joined"
		action.Apply = func(c context.Context) error {
			return j.join(c, host, node, controlPlane)
		}
	}
	return action, nil
}

func hasFile(ctx *provisioning.Context, host provisioning.Host, path string) (bool, error) {
	var ok bool
	err := ctx.Inspect("ssh", func() error {
		var err error
		ok, err = host.Check(ctx, "test -f "+ssh.Quote(path))
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s on %s: %w", path, host.Host(), err)
	}
	return ok, nil
}

func observedFile(present bool) reconcile.Observed[string] {
	if present {
		return reconcile.Found("present")
	}
	return reconcile.Absent[string]()
}
