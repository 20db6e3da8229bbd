package provisioning

import (
	"context"
	"net/netip"
	"net/url"

	"github.com/imamik/proxk8s/internal/config"
	"github.com/imamik/proxk8s/internal/platform/proxmox"
)

// Phase defines the interface for a provisioning phase.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the phase. A returned error is fatal for the run;
	// per-resource failures of optional work are only recorded in the report.
	Provision(ctx *Context) error
}

// Hypervisor is the Proxmox VE surface used to provision VMs.
// Implemented by internal/platform/proxmox.Client.
type Hypervisor interface {
	Node() string
	FindVM(ctx context.Context, name string) (proxmox.VM, bool, error)
	NextID(ctx context.Context) (int, error)
	CreateVM(ctx context.Context, params url.Values) error
	StartVM(ctx context.Context, vmid int) error
	VMConfig(ctx context.Context, vmid int) (map[string]any, error)
	UpdateVMConfig(ctx context.Context, vmid int, params url.Values) error
	Storages(ctx context.Context) ([]proxmox.Storage, error)
	StorageContent(ctx context.Context, storage, content string) ([]proxmox.Volume, error)
	GuestIPv4(ctx context.Context, vmid int) (netip.Addr, bool, error)
}

// Host runs commands on one cluster node.
// Implemented by internal/platform/ssh.Client.
type Host interface {
	Host() string
	Execute(ctx context.Context, command string) (string, error)
	Check(ctx context.Context, command string) (bool, error)
	WriteFile(ctx context.Context, path, content string, mode uint32) error
	Reboot(ctx context.Context) error
}

// HostDialer returns a Host for an inventory node.
type HostDialer interface {
	Dial(node config.Node) (Host, error)
}
