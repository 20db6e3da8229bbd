package osprep

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/proxk8s/internal/driver"
	"github.com/imamik/proxk8s/internal/feature"
	"github.com/imamik/proxk8s/internal/hostprep"
	"github.com/imamik/proxk8s/internal/platform/ssh"
	"github.com/imamik/proxk8s/internal/provisioning"
	"github.com/imamik/proxk8s/internal/reconcile"
	"github.com/imamik/proxk8s/internal/util/naming"
	"github.com/imamik/proxk8s/internal/util/netutil"
	"github.com/imamik/proxk8s/internal/util/retry"
)

const phase = "os-prep"

// Provisioner prepares the host OS of every inventory node.
type Provisioner struct {
	waitPort func(ctx context.Context, ip string, port int, timeout time.Duration) error
}

// NewProvisioner creates a new OS preparation provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{waitPort: netutil.WaitForPort}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface. Host preparation
// failures are fatal; driver failures are isolated to the GPU subsystem.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	infra := ctx.Config.Infra
	if infra == nil || ctx.Hosts == nil {
		return fmt.Errorf("os preparation requires infrastructure configuration and host access")
	}

	planner := hostprep.NewPlanner(hostprep.Spec{
		Cluster:       ctx.Config.Cluster.Name,
		Packages:      infra.Host.Packages,
		KernelModules: infra.Host.KernelModules,
	})

	hosts := make(map[string]provisioning.Host, len(infra.AllNodes()))
	plan := &reconcile.Plan{}
	for _, node := range infra.AllNodes() {
		host, err := ctx.Hosts.Dial(node)
		if err != nil {
			return err
		}
		hosts[node.Name] = host
		var nodePlan *reconcile.Plan
		if err := ctx.Inspect("ssh", func() error {
			nodePlan = &reconcile.Plan{}
			return planner.Plan(ctx, node.Name, host, nodePlan)
		}); err != nil {
			return fmt.Errorf("failed to inspect host %s: %w", node.Name, err)
		}
		plan.Actions = append(plan.Actions, nodePlan.Actions...)
	}

	// A disabled gate never touches GPU hosts.
	err := ctx.Gates.GPU.Run(func(gpu feature.GPUSettings) error {
		return p.planDrivers(ctx, gpu, hosts, plan)
	})
	if err != nil {
		return err
	}

	ctx.Observer.Printf("[%s] %d of %d host actions change state", phase, plan.Changes(), len(plan.Actions))
	return reconcile.FatalErrors(ctx.Execute(phase, plan))
}

// planDrivers adds one driver action per GPU node. An inspection failure
// is recorded against the GPU subsystem and does not stop the phase.
func (p *Provisioner) planDrivers(ctx *provisioning.Context, gpu feature.GPUSettings, hosts map[string]provisioning.Host, plan *reconcile.Plan) error {
	installer := driver.NewInstaller(gpu, p.rebootFunc(ctx, hosts))
	for _, name := range gpu.Nodes() {
		host, ok := hosts[name]
		if !ok {
			return fmt.Errorf("GPU node %s is not in the inventory", name)
		}
		action, err := installer.Plan(ctx, name, host)
		if err != nil {
			inspectErr := err
			action = reconcile.Action{
				Kind: driver.Kind, Target: name, Name: action.Name,
				Type: reconcile.ActionUpdate, Subsystem: feature.SubsystemGPU,
				Apply: func(context.Context) error {
					return fmt.Errorf("failed to inspect driver: %w", inspectErr)
				},
			}
		}
		plan.Add(action)
	}
	return nil
}

// rebootFunc reboots a node and waits until it is back. A marker in /run
// proves the host actually restarted rather than SSH merely staying up.
func (p *Provisioner) rebootFunc(ctx *provisioning.Context, hosts map[string]provisioning.Host) driver.RebootFunc {
	return func(c context.Context, node string) error {
		host := hosts[node]
		marker := naming.RebootMarker(ctx.Config.Cluster.Name)
		if _, err := host.Execute(c, "touch "+ssh.Quote(marker)); err != nil {
			return err
		}
		ctx.Observer.Printf("[%s] Rebooting %s", phase, node)
		if err := host.Reboot(c); err != nil {
			return err
		}

		err := retry.Poll(c, ctx.Timeouts.PollInterval, ctx.Timeouts.SSHReady, func(c context.Context) (bool, error) {
			if err := p.waitPort(c, host.Host(), netutil.SSHPort, ctx.Timeouts.PollInterval); err != nil {
				return false, nil
			}
			present, err := host.Check(c, "test -e "+ssh.Quote(marker))
			if err != nil {
				return false, nil
			}
			return !present, nil
		})
		if err != nil {
			return fmt.Errorf("%s did not come back after reboot: %w", node, err)
		}
		return nil
	}
}
