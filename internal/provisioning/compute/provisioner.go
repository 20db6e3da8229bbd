package compute

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/imamik/proxk8s/internal/config"
	"github.com/imamik/proxk8s/internal/feature"
	"github.com/imamik/proxk8s/internal/platform/proxmox"
	"github.com/imamik/proxk8s/internal/provisioning"
	"github.com/imamik/proxk8s/internal/reconcile"
	"github.com/imamik/proxk8s/internal/util/async"
	"github.com/imamik/proxk8s/internal/util/netutil"
	"github.com/imamik/proxk8s/internal/util/retry"
)

const phase = "provisioning"

// Resource kinds used in plans and reports.
const (
	KindVM             = "VM"
	KindPCIPassthrough = "PCIPassthrough"
)

// preferredStorage is used when the configured storage cannot hold disks.
const preferredStorage = "local-lvm"

// Provisioner creates and starts one VM per inventory node.
type Provisioner struct {
	// idMu serialises NextID+CreateVM so parallel creates never race for
	// the same VMID.
	idMu     sync.Mutex
	waitPort func(ctx context.Context, ip string, port int, timeout time.Duration) error
}

// NewProvisioner creates a new compute provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{waitPort: netutil.WaitForPort}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	infra := ctx.Config.Infra
	if infra == nil || ctx.Hypervisor == nil {
		return fmt.Errorf("provisioning requires infrastructure configuration and a hypervisor")
	}

	iso, err := p.resolveISO(ctx)
	if err != nil {
		return err
	}
	storage, err := p.resolveStorage(ctx)
	if err != nil {
		return err
	}
	if storage != infra.Proxmox.Storage {
		provisioning.LogValidationWarning(ctx.Observer, phase,
			fmt.Sprintf("storage %s cannot hold VM disks, using %s", infra.Proxmox.Storage, storage))
	}

	plan := &reconcile.Plan{}
	for _, node := range infra.AllNodes() {
		if err := p.planNode(ctx, node, vmSpec{ISO: iso, Storage: storage}, plan); err != nil {
			return err
		}
	}

	ctx.Observer.Printf("[%s] %d of %d VM actions change state", phase, plan.Changes(), len(plan.Actions))
	if err := ctx.Execute(phase, plan); err != nil {
		return err
	}

	return p.waitReady(ctx, infra.AllNodes())
}

// resolveISO finds the installer ISO in storage content. A missing ISO is
// fatal; uploading one is not this phase's job.
func (p *Provisioner) resolveISO(ctx *provisioning.Context) (string, error) {
	px := ctx.Config.Infra.Proxmox
	want := NormalizeISO(px.ISOImage, px.ISOStorage)
	isoStorage, _, _ := strings.Cut(want, ":")

	var volumes []proxmox.Volume
	err := ctx.Inspect("proxmox", func() error {
		var err error
		volumes, err = ctx.Hypervisor.StorageContent(ctx, isoStorage, "iso")
		return fatalOnAuth(err)
	})
	if err != nil {
		return "", fmt.Errorf("failed to list ISO images: %w", err)
	}
	for _, v := range volumes {
		if v.VolID == want {
			return want, nil
		}
	}
	return "", fmt.Errorf("installer ISO %s not found on node %s", want, ctx.Hypervisor.Node())
}

// resolveStorage returns the configured storage when it can hold VM disks,
// otherwise local-lvm, otherwise the first storage that can.
func (p *Provisioner) resolveStorage(ctx *provisioning.Context) (string, error) {
	var storages []proxmox.Storage
	err := ctx.Inspect("proxmox", func() error {
		var err error
		storages, err = ctx.Hypervisor.Storages(ctx)
		return fatalOnAuth(err)
	})
	if err != nil {
		return "", fmt.Errorf("failed to list storages: %w", err)
	}
	return SelectStorage(storages, ctx.Config.Infra.Proxmox.Storage)
}

// SelectStorage picks the disk storage for new VMs.
func SelectStorage(storages []proxmox.Storage, configured string) (string, error) {
	var first string
	hasPreferred := false
	for _, s := range storages {
		if !s.SupportsImages() {
			continue
		}
		switch s.Name {
		case configured:
			return s.Name, nil
		case preferredStorage:
			hasPreferred = true
		}
		if first == "" {
			first = s.Name
		}
	}
	if hasPreferred {
		return preferredStorage, nil
	}
	if first == "" {
		return "", fmt.Errorf("no storage on the node can hold VM disks")
	}
	return first, nil
}

// NormalizeISO turns a bare file name into a volume id on isoStorage.
// Values that already carry a storage prefix are returned unchanged.
func NormalizeISO(image, isoStorage string) string {
	if strings.Contains(image, ":") {
		return image
	}
	return fmt.Sprintf("%s:iso/%s", isoStorage, image)
}

func (p *Provisioner) planNode(ctx *provisioning.Context, node config.Node, spec vmSpec, plan *reconcile.Plan) error {
	var (
		vm    proxmox.VM
		found bool
	)
	err := ctx.Inspect("proxmox", func() error {
		var err error
		vm, found, err = ctx.Hypervisor.FindVM(ctx, node.Name)
		return fatalOnAuth(err)
	})
	if err != nil {
		return fmt.Errorf("failed to look up VM %s: %w", node.Name, err)
	}

	spec.Node = node
	spec.PCIDevice = p.pciDevice(ctx, node.Name)
	observed := reconcile.Absent[proxmox.VM]()
	if found {
		observed = reconcile.Found(vm)
		ctx.State.SetVMID(node.Name, vm.ID)
	}

	action := reconcile.Action{
		Kind:    KindVM,
		Target:  node.Name,
		Name:    node.Name,
		Type:    reconcile.DecideEnsure(observed),
		Desired: spec.describe(ctx.Config.Infra.VM),
	}
	switch {
	case !found:
		action.Apply = func(c context.Context) error { return p.create(c, ctx, spec) }
	case vm.Status != "running":
		action.Type = reconcile.ActionUpdate
		action.Observed = vm.Status
		action.Desired = "running"
		action.Apply = func(c context.Context) error { return ctx.Hypervisor.StartVM(c, vm.ID) }
	default:
		action.Observed = fmt.Sprintf("vmid=%d %s", vm.ID, vm.Status)
	}
	plan.Add(action)

	if found && spec.PCIDevice != "" {
		pci, err := p.planPassthrough(ctx, node.Name, vm.ID, spec.PCIDevice)
		if err != nil {
			return err
		}
		plan.Add(pci)
	}
	return nil
}

// pciDevice returns the passthrough device for node, or "" when the GPU
// gate is disabled or the node is not a GPU node.
func (p *Provisioner) pciDevice(ctx *provisioning.Context, node string) string {
	settings, ok := ctx.Gates.GPU.Settings()
	if !ok {
		return ""
	}
	return settings.Devices[node]
}

// planPassthrough converges hostpci0 on an existing VM. The change only
// takes effect at the next power cycle.
func (p *Provisioner) planPassthrough(ctx *provisioning.Context, node string, vmid int, device string) (reconcile.Action, error) {
	var cfg map[string]any
	err := ctx.Inspect("proxmox", func() error {
		var err error
		cfg, err = ctx.Hypervisor.VMConfig(ctx, vmid)
		return fatalOnAuth(err)
	})
	if err != nil {
		return reconcile.Action{}, fmt.Errorf("failed to read config of VM %s: %w", node, err)
	}

	want := hostPCI(device)
	observed := reconcile.Absent[string]()
	if v, ok := cfg["hostpci0"].(string); ok && v != "" {
		observed = reconcile.Found(v)
	}
	action := reconcile.Action{
		Kind:      KindPCIPassthrough,
		Target:    node,
		Name:      "hostpci0",
		Type:      reconcile.Decide(want, observed, func(a, b string) bool { return a == b }),
		Desired:   want,
		Observed:  observed.Value,
		Subsystem: feature.SubsystemGPU,
	}
	if action.Type != reconcile.ActionNoop {
		action.Apply = func(c context.Context) error {
			return ctx.Hypervisor.UpdateVMConfig(c, vmid, passthroughParams(device))
		}
	}
	return action, nil
}

func (p *Provisioner) create(c context.Context, ctx *provisioning.Context, spec vmSpec) error {
	p.idMu.Lock()
	vmid, err := ctx.Hypervisor.NextID(c)
	if err == nil {
		err = ctx.Hypervisor.CreateVM(c, spec.params(vmid, ctx.Config.Infra))
	}
	p.idMu.Unlock()
	if err != nil {
		return err
	}

	ctx.State.SetVMID(spec.Node.Name, vmid)
	ctx.Observer.Printf("[%s] Created VM %s (vmid %d)", phase, spec.Node.Name, vmid)
	return ctx.Hypervisor.StartVM(c, vmid)
}

// waitReady waits for every guest agent to report the inventory address and
// for SSH to answer on it.
func (p *Provisioner) waitReady(ctx *provisioning.Context, nodes config.Nodes) error {
	tasks := make([]async.Task, 0, len(nodes))
	for _, node := range nodes {
		tasks = append(tasks, async.Task{
			Name: node.Name,
			Func: func(c context.Context) error {
				return p.waitForNode(c, ctx, node)
			},
		})
	}
	if err := async.RunBounded(ctx, ctx.Config.Cluster.Forks, tasks); err != nil {
		return fmt.Errorf("nodes not reachable: %w", err)
	}
	ctx.Observer.Printf("[%s] All %d nodes reachable", phase, len(nodes))
	return nil
}

func fatalOnAuth(err error) error {
	if proxmox.IsUnauthorized(err) || proxmox.IsNotFound(err) {
		return retry.Fatal(err)
	}
	return err
}
