package compute

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/imamik/proxk8s/internal/config"
)

// vmSpec is everything needed to create one VM.
type vmSpec struct {
	Node      config.Node
	ISO       string
	Storage   string
	PCIDevice string
}

func (s vmSpec) describe(vm config.VMConfig) string {
	d := fmt.Sprintf("cores=%d memory=%dMiB disk=%dG storage=%s", vm.Cores, vm.MemoryMB, vm.DiskGB, s.Storage)
	if s.PCIDevice != "" {
		d += " hostpci0=" + s.PCIDevice
	}
	return d
}

// params builds the create request. The disk comes first in the boot order
// so an installed system boots from disk and a blank one from the ISO.
func (s vmSpec) params(vmid int, infra *config.InfraConfig) url.Values {
	v := url.Values{}
	v.Set("vmid", strconv.Itoa(vmid))
	v.Set("name", s.Node.Name)
	v.Set("cores", strconv.Itoa(infra.VM.Cores))
	v.Set("memory", strconv.Itoa(infra.VM.MemoryMB))
	v.Set("cpu", "host")
	v.Set("ostype", "l26")
	v.Set("scsihw", "virtio-scsi-single")
	v.Set("scsi0", fmt.Sprintf("%s:%d", s.Storage, infra.VM.DiskGB))
	v.Set("ide2", s.ISO+",media=cdrom")
	v.Set("net0", "virtio,bridge="+infra.Proxmox.Bridge)
	v.Set("boot", "order=scsi0;ide2")
	v.Set("agent", "1")
	v.Set("onboot", "1")
	if s.PCIDevice != "" {
		for k, vals := range passthroughParams(s.PCIDevice) {
			v[k] = vals
		}
	}
	return v
}

// hostPCI is the hostpci0 value for device.
func hostPCI(device string) string {
	return device + ",pcie=1"
}

// passthroughParams requests PCIe passthrough of device. PCIe devices need
// the q35 machine type.
func passthroughParams(device string) url.Values {
	v := url.Values{}
	v.Set("machine", "q35")
	v.Set("hostpci0", hostPCI(device))
	return v
}
