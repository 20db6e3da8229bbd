// Package feature evaluates optional subsystem flags once per run.
//
// Each subsystem is represented by a [Gate]: either disabled, or enabled
// with settings that have already been validated. Components receive the
// gate, never the raw flag, so a disabled subsystem cannot be reached and
// its configuration keys are never inspected.
package feature

import (
	"errors"
	"fmt"
	"net/netip"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/imamik/proxk8s/internal/config"
)

// Subsystem names used in reports and logs.
const (
	SubsystemStorage = "storage"
	SubsystemGPU     = "gpu"
)

// Gate is a resolved optional subsystem.
type Gate[T any] struct {
	name     string
	settings *T
}

// Enable returns an enabled gate carrying validated settings.
func Enable[T any](name string, settings T) Gate[T] {
	return Gate[T]{name: name, settings: &settings}
}

// Disable returns a disabled gate.
func Disable[T any](name string) Gate[T] {
	return Gate[T]{name: name}
}

// Name returns the subsystem name.
func (g Gate[T]) Name() string { return g.name }

// Enabled reports whether the subsystem is on.
func (g Gate[T]) Enabled() bool { return g.settings != nil }

// Settings returns the validated settings of an enabled gate.
func (g Gate[T]) Settings() (T, bool) {
	if g.settings == nil {
		var zero T
		return zero, false
	}
	return *g.settings, true
}

// Run calls fn with the settings when the gate is enabled. A disabled gate
// returns nil without calling fn.
func (g Gate[T]) Run(fn func(T) error) error {
	if g.settings == nil {
		return nil
	}
	return fn(*g.settings)
}

// StorageSettings configures the NFS dynamic provisioner.
type StorageSettings struct {
	Server    netip.Addr
	Path      string
	ClassName string
}

// GPUSettings configures PCI passthrough and the NVIDIA stack.
type GPUSettings struct {
	// Devices maps node name to the host PCI device passed through to it.
	Devices        map[string]string
	DriverFallback string
	PackagePrefix  string
}

// Nodes returns the GPU node names in sorted order.
func (s GPUSettings) Nodes() []string {
	nodes := make([]string, 0, len(s.Devices))
	for n := range s.Devices {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

// Has reports whether node is a GPU node.
func (s GPUSettings) Has(node string) bool {
	_, ok := s.Devices[node]
	return ok
}

// Gates holds every optional subsystem for one run.
type Gates struct {
	Storage Gate[StorageSettings]
	GPU     Gate[GPUSettings]
}

// pciAddress accepts "01:00", "01:00.0" and "0000:01:00.0".
var pciAddress = regexp.MustCompile(`^([0-9a-fA-F]{4}:)?[0-9a-fA-F]{2}:[0-9a-fA-F]{2}(\.[0-7])?$`)

// Evaluate resolves the gates from the infrastructure config. Settings of a
// disabled subsystem are ignored entirely. A nil infra disables everything.
func Evaluate(infra *config.InfraConfig) (Gates, error) {
	gates := Gates{
		Storage: Disable[StorageSettings](SubsystemStorage),
		GPU:     Disable[GPUSettings](SubsystemGPU),
	}
	if infra == nil {
		return gates, nil
	}

	var missing, invalid []string

	if infra.Storage.Enabled {
		s, m, i := storageSettings(infra.Storage)
		missing, invalid = append(missing, m...), append(invalid, i...)
		if len(m) == 0 && len(i) == 0 {
			gates.Storage = Enable(SubsystemStorage, s)
		}
	}

	if infra.GPU.Enabled {
		g, m, i := gpuSettings(infra)
		missing, invalid = append(missing, m...), append(invalid, i...)
		if len(m) == 0 && len(i) == 0 {
			gates.GPU = Enable(SubsystemGPU, g)
		}
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, &config.MissingConfigurationError{Keys: missing})
	}
	if len(invalid) > 0 {
		errs = append(errs, &config.InvalidConfigurationError{Problems: invalid})
	}
	if len(errs) > 0 {
		return Gates{}, errors.Join(errs...)
	}
	return gates, nil
}

func storageSettings(c config.StorageConfig) (s StorageSettings, missing, invalid []string) {
	if c.NFSServer == "" {
		missing = append(missing, "STORAGE_NFS_SERVER")
	}
	if c.NFSPath == "" {
		missing = append(missing, "STORAGE_NFS_PATH")
	}
	if len(missing) > 0 {
		return s, missing, nil
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(c.NFSServer))
	if err != nil {
		invalid = append(invalid, fmt.Sprintf("STORAGE_NFS_SERVER: %v", err))
	}
	if !path.IsAbs(c.NFSPath) {
		invalid = append(invalid, fmt.Sprintf("STORAGE_NFS_PATH: %q is not an absolute path", c.NFSPath))
	}
	return StorageSettings{Server: addr, Path: path.Clean(c.NFSPath), ClassName: c.ClassName}, nil, invalid
}

func gpuSettings(infra *config.InfraConfig) (g GPUSettings, missing, invalid []string) {
	c := infra.GPU
	if len(c.Nodes) == 0 {
		missing = append(missing, "GPU_NODES")
	}
	if len(c.PCIDevices) == 0 {
		missing = append(missing, "GPU_PCI_DEVICES")
	}
	if c.DriverFallback == "" {
		missing = append(missing, "GPU_DRIVER_FALLBACK")
	}
	if len(missing) > 0 {
		return g, missing, nil
	}

	if len(c.PCIDevices) != 1 && len(c.PCIDevices) != len(c.Nodes) {
		invalid = append(invalid, fmt.Sprintf("GPU_PCI_DEVICES: expected 1 or %d entries, got %d", len(c.Nodes), len(c.PCIDevices)))
	}
	for _, dev := range c.PCIDevices {
		if !pciAddress.MatchString(dev) {
			invalid = append(invalid, fmt.Sprintf("GPU_PCI_DEVICES: %q is not a PCI address", dev))
		}
	}

	devices := make(map[string]string, len(c.Nodes))
	for i, node := range c.Nodes {
		if _, ok := infra.AllNodes().Find(node); !ok {
			invalid = append(invalid, fmt.Sprintf("GPU_NODES: %q is not in the inventory", node))
			continue
		}
		if _, dup := devices[node]; dup {
			invalid = append(invalid, fmt.Sprintf("GPU_NODES: %q listed twice", node))
			continue
		}
		dev := c.PCIDevices[0]
		if len(c.PCIDevices) == len(c.Nodes) {
			dev = c.PCIDevices[i]
		}
		devices[node] = dev
	}

	return GPUSettings{
		Devices:        devices,
		DriverFallback: c.DriverFallback,
		PackagePrefix:  c.DriverPackagePrefix,
	}, nil, invalid
}
