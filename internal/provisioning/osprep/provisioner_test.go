package osprep

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/proxk8s/internal/config"
	"github.com/imamik/proxk8s/internal/feature"
	"github.com/imamik/proxk8s/internal/provisioning"
	"github.com/imamik/proxk8s/internal/reconcile"
)

// simHost simulates a Debian host reachable over SSH.
type simHost struct {
	mu       sync.Mutex
	addr     string
	packages map[string]bool
	modules  map[string]bool
	files    map[string]string
	apt      string
	aptFails bool
	reboots  int
	commands []string
}

func newSimHost(addr string) *simHost {
	return &simHost{
		addr:     addr,
		packages: map[string]bool{},
		modules:  map[string]bool{},
		files:    map[string]string{},
		apt:      "nvidia-driver-570 - NVIDIA\nnvidia-driver-550 - NVIDIA\n",
	}
}

func lastArg(cmd string) string {
	fields := strings.Fields(cmd)
	for i := len(fields) - 1; i >= 0; i-- {
		if f := fields[i]; !strings.HasPrefix(f, "2>") && f != "||" && f != "true" {
			return strings.Trim(f, "'")
		}
	}
	return ""
}

func (h *simHost) Host() string { return h.addr }

func (h *simHost) Execute(_ context.Context, cmd string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, cmd)

	switch {
	case strings.HasPrefix(cmd, "dpkg-query") && strings.Contains(cmd, "${Package}"):
		var out []string
		for pkg := range h.packages {
			if strings.HasPrefix(pkg, "nvidia-driver-") {
				out = append(out, pkg+" ii ")
			}
		}
		return strings.Join(out, "\n"), nil
	case strings.HasPrefix(cmd, "dpkg-query"):
		if h.packages[lastArg(cmd)] {
			return "ii ", nil
		}
		return "", nil
	case strings.HasPrefix(cmd, "apt-cache search"):
		return h.apt, nil
	case strings.Contains(cmd, "apt-get install"):
		if h.aptFails && strings.Contains(cmd, "nvidia") {
			return "E: broken", errors.New("exit status 100")
		}
		h.packages[lastArg(cmd)] = true
	case strings.HasPrefix(cmd, "modprobe"):
		h.modules[lastArg(cmd)] = true
	case strings.HasPrefix(cmd, "cat "):
		return h.files[strings.Trim(strings.Fields(cmd)[1], "'")], nil
	case strings.HasPrefix(cmd, "touch "):
		h.files[lastArg(cmd)] = ""
	}
	return "", nil
}

func (h *simHost) Check(_ context.Context, cmd string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	path := lastArg(cmd)
	if mod, ok := strings.CutPrefix(path, "/sys/module/"); ok {
		return h.modules[mod], nil
	}
	_, ok := h.files[path]
	return ok, nil
}

func (h *simHost) WriteFile(_ context.Context, path, content string, _ uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[path] = content
	return nil
}

func (h *simHost) Reboot(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reboots++
	for path := range h.files {
		if strings.HasPrefix(path, "/var/run/") {
			delete(h.files, path)
		}
	}
	return nil
}

func (h *simHost) ran(substr string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.commands {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

type simDialer struct {
	hosts map[string]*simHost
	dials int
}

func (d *simDialer) Dial(node config.Node) (provisioning.Host, error) {
	d.dials++
	return d.hosts[node.Name], nil
}

func testSetup(gates feature.Gates) (*provisioning.Context, *simDialer) {
	infra := &config.InfraConfig{
		Inventory: config.InventoryConfig{
			ControlPlanes: config.Nodes{{Name: "cp-1", Address: netip.MustParseAddr("10.0.0.11")}},
			Workers:       config.Nodes{{Name: "gpu-1", Address: netip.MustParseAddr("10.0.0.21")}},
		},
		Host: config.HostConfig{Packages: []string{"curl", "containerd"}, KernelModules: []string{"overlay", "br_netfilter"}},
	}
	dialer := &simDialer{hosts: map[string]*simHost{
		"cp-1":  newSimHost("10.0.0.11"),
		"gpu-1": newSimHost("10.0.0.21"),
	}}
	cfg := &config.Config{
		Cluster:  config.ClusterConfig{Name: "lab", Forks: 2},
		Infra:    infra,
		Timeouts: config.FastTimeouts(),
	}
	ctx := provisioning.NewContext(context.Background(), cfg, gates)
	ctx.Hosts = dialer
	return ctx, dialer
}

func gpuGates() feature.Gates {
	return feature.Gates{
		GPU: feature.Enable(feature.SubsystemGPU, feature.GPUSettings{
			Devices:        map[string]string{"gpu-1": "0000:01:00.0"},
			DriverFallback: "535",
			PackagePrefix:  "nvidia-driver-",
		}),
	}
}

func newTestProvisioner() *Provisioner {
	p := NewProvisioner()
	p.waitPort = func(context.Context, string, int, time.Duration) error { return nil }
	return p
}

func TestProvision_ConvergesHosts(t *testing.T) {
	t.Parallel()

	ctx, dialer := testSetup(feature.Gates{})
	p := newTestProvisioner()
	require.NoError(t, p.Provision(ctx))

	for _, h := range dialer.hosts {
		assert.True(t, h.packages["curl"])
		assert.True(t, h.packages["containerd"])
		assert.True(t, h.modules["overlay"])
		assert.Equal(t, "br_netfilter\noverlay\n", h.files["/etc/modules-load.d/lab.conf"])
		assert.Equal(t, 0, h.ran("apt-cache"), "disabled GPU gate must not query drivers")
	}

	second, _ := testSetup(feature.Gates{})
	second.Hosts = dialer
	require.NoError(t, p.Provision(second))
	assert.Equal(t, 0, second.Report.Count(reconcile.StatusChanged))
	assert.True(t, second.Report.Converged())
}

func TestProvision_InstallsDriverOnceAndReboots(t *testing.T) {
	t.Parallel()

	ctx, dialer := testSetup(gpuGates())
	p := newTestProvisioner()
	require.NoError(t, p.Provision(ctx))

	gpu := dialer.hosts["gpu-1"]
	assert.True(t, gpu.packages["nvidia-driver-550"], "second candidate is selected")
	assert.Equal(t, 1, gpu.reboots)
	assert.Equal(t, 0, dialer.hosts["cp-1"].ran("apt-cache"))

	// Newer candidates never trigger an upgrade or another reboot.
	gpu.apt = "nvidia-driver-580 - NVIDIA\nnvidia-driver-575 - NVIDIA\n"
	second, _ := testSetup(gpuGates())
	second.Hosts = dialer
	require.NoError(t, p.Provision(second))
	assert.Equal(t, 1, gpu.reboots)
	assert.Equal(t, 1, gpu.ran("apt-get install -y --no-install-recommends nvidia-driver-"))
	assert.Equal(t, 1, gpu.ran("apt-cache"))
}

func TestProvision_DriverFailureIsOptional(t *testing.T) {
	t.Parallel()

	ctx, dialer := testSetup(gpuGates())
	dialer.hosts["gpu-1"].aptFails = true

	require.NoError(t, newTestProvisioner().Provision(ctx))

	failures := ctx.Report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, feature.SubsystemGPU, failures[0].Subsystem)
	assert.True(t, reconcile.IsOptionalSubsystemFailure(failures[0].Err))
	assert.Equal(t, 0, dialer.hosts["gpu-1"].reboots)
}

func TestProvision_RequiresHosts(t *testing.T) {
	t.Parallel()

	ctx, _ := testSetup(feature.Gates{})
	ctx.Hosts = nil
	require.Error(t, newTestProvisioner().Provision(ctx))
}
