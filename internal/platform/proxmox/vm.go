package proxmox

import (
	"context"
	"fmt"
	"maps"
	"net/netip"
	"net/url"
	"slices"
	"strconv"
	"strings"

	gp "github.com/luthermonson/go-proxmox"
)

// VM is a QEMU guest as listed by the node.
type VM struct {
	ID     int    `json:"vmid"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Storage is a storage pool visible on the node.
type Storage struct {
	Name    string `json:"storage"`
	Content string `json:"content"`
	Active  int    `json:"active"`
}

// SupportsImages reports whether the storage can hold VM disks.
func (s Storage) SupportsImages() bool {
	for _, c := range strings.Split(s.Content, ",") {
		if c == "images" || c == "rootdir" {
			return true
		}
	}
	return false
}

// Volume is one item of storage content.
type Volume struct {
	VolID   string `json:"volid"`
	Content string `json:"content"`
}

// ListVMs returns all QEMU guests on the node.
func (c *Client) ListVMs(ctx context.Context) ([]VM, error) {
	node, err := c.pveNode(ctx)
	if err != nil {
		return nil, err
	}
	vms, err := node.VirtualMachines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list VMs: %w", err)
	}
	out := make([]VM, 0, len(vms))
	for _, vm := range vms {
		out = append(out, VM{ID: int(vm.VMID), Name: vm.Name, Status: vm.Status})
	}
	return out, nil
}

// FindVM returns the VM named name, if any.
func (c *Client) FindVM(ctx context.Context, name string) (VM, bool, error) {
	vms, err := c.ListVMs(ctx)
	if err != nil {
		return VM{}, false, err
	}
	for _, vm := range vms {
		if vm.Name == name {
			return vm, true, nil
		}
	}
	return VM{}, false, nil
}

// NextID asks the cluster for a free VMID.
func (c *Client) NextID(ctx context.Context) (int, error) {
	cluster, err := c.api.Cluster(ctx)
	if err != nil {
		return 0, fmt.Errorf("get cluster: %w", err)
	}
	id, err := cluster.NextID(ctx)
	if err != nil {
		return 0, fmt.Errorf("get next VMID: %w", err)
	}
	return id, nil
}

// CreateVM creates a VM from params and waits for the creation task.
// params must carry the "vmid" key.
func (c *Client) CreateVM(ctx context.Context, params url.Values) error {
	name := params.Get("name")
	vmid, err := strconv.Atoi(params.Get("vmid"))
	if err != nil {
		return fmt.Errorf("create VM %s: invalid vmid %q", name, params.Get("vmid"))
	}
	node, err := c.pveNode(ctx)
	if err != nil {
		return err
	}
	task, err := node.NewVirtualMachine(ctx, vmid, vmOptions(params, "vmid")...)
	if err != nil {
		return fmt.Errorf("create VM %s: %w", name, err)
	}
	return c.wait(ctx, task)
}

// StartVM powers a VM on and waits for the start task.
func (c *Client) StartVM(ctx context.Context, vmid int) error {
	vm, err := c.vm(ctx, vmid)
	if err != nil {
		return err
	}
	task, err := vm.Start(ctx)
	if err != nil {
		return fmt.Errorf("start VM %d: %w", vmid, err)
	}
	return c.wait(ctx, task)
}

// VMConfig returns the current configuration of a VM.
func (c *Client) VMConfig(ctx context.Context, vmid int) (map[string]any, error) {
	var cfg map[string]any
	if err := c.api.Get(ctx, c.nodePath("/qemu/%d/config", vmid), &cfg); err != nil {
		return nil, fmt.Errorf("get config of VM %d: %w", vmid, err)
	}
	return cfg, nil
}

// UpdateVMConfig sets configuration keys on a VM. Hardware changes on a
// running VM take effect at its next power cycle.
func (c *Client) UpdateVMConfig(ctx context.Context, vmid int, params url.Values) error {
	vm, err := c.vm(ctx, vmid)
	if err != nil {
		return err
	}
	task, err := vm.Config(ctx, vmOptions(params)...)
	if err != nil {
		return fmt.Errorf("update config of VM %d: %w", vmid, err)
	}
	return c.wait(ctx, task)
}

// Storages lists the storage pools on the node.
func (c *Client) Storages(ctx context.Context) ([]Storage, error) {
	var out []Storage
	if err := c.api.Get(ctx, c.nodePath("/storage"), &out); err != nil {
		return nil, fmt.Errorf("list storages: %w", err)
	}
	return out, nil
}

// StorageContent lists the volumes of one content type in a storage.
func (c *Client) StorageContent(ctx context.Context, storage, content string) ([]Volume, error) {
	p := c.nodePath("/storage/%s/content", url.PathEscape(storage))
	if content != "" {
		p += "?" + url.Values{"content": {content}}.Encode()
	}
	var out []Volume
	if err := c.api.Get(ctx, p, &out); err != nil {
		return nil, fmt.Errorf("list content of storage %s: %w", storage, err)
	}
	return out, nil
}

// GuestIPv4 returns the first IPv4 address reported by the guest agent that
// is neither loopback nor link-local. ok is false while the agent has no
// such address yet.
func (c *Client) GuestIPv4(ctx context.Context, vmid int) (netip.Addr, bool, error) {
	vm, err := c.vm(ctx, vmid)
	if err != nil {
		return netip.Addr{}, false, err
	}
	ifaces, err := vm.AgentGetNetworkIFaces(ctx)
	if err != nil {
		return netip.Addr{}, false, fmt.Errorf("query guest agent of VM %d: %w", vmid, err)
	}
	for _, iface := range ifaces {
		for _, ip := range iface.IPAddresses {
			if !strings.HasPrefix(strings.ToLower(ip.IPAddressType), "ipv4") {
				continue
			}
			addr, err := netip.ParseAddr(ip.IPAddress)
			if err != nil || !addr.Is4() || addr.IsLoopback() || addr.IsLinkLocalUnicast() {
				continue
			}
			return addr, true, nil
		}
	}
	return netip.Addr{}, false, nil
}

// vmOptions converts form params into API options in key order. Integer
// values are sent as JSON numbers.
func vmOptions(params url.Values, skip ...string) []gp.VirtualMachineOption {
	keys := slices.Sorted(maps.Keys(params))
	opts := make([]gp.VirtualMachineOption, 0, len(keys))
	for _, k := range keys {
		if slices.Contains(skip, k) {
			continue
		}
		v := params.Get(k)
		var value any = v
		if n, err := strconv.Atoi(v); err == nil {
			value = n
		}
		opts = append(opts, gp.VirtualMachineOption{Name: k, Value: value})
	}
	return opts
}
