package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/imamik/proxk8s/internal/feature"
	"github.com/imamik/proxk8s/internal/reconcile"
)

// Kind is the resource kind used in plans and reports.
const Kind = "Driver"

// Host runs commands on one node.
type Host interface {
	Execute(ctx context.Context, command string) (string, error)
}

// RebootFunc reboots a node and waits until it is reachable again.
type RebootFunc func(ctx context.Context, node string) error

// Installer plans driver installs for GPU nodes.
type Installer struct {
	prefix   string
	fallback string
	reboot   RebootFunc
	selectFn func(candidates []string, fallback string) string
}

// NewInstaller creates an installer from validated GPU settings.
func NewInstaller(settings feature.GPUSettings, reboot RebootFunc) *Installer {
	return &Installer{
		prefix:   settings.PackagePrefix,
		fallback: settings.DriverFallback,
		reboot:   reboot,
		selectFn: Select,
	}
}

// Inspect returns the installed driver version, or absent when no package
// with the driver prefix is installed.
func (i *Installer) Inspect(ctx context.Context, host Host) (reconcile.Observed[string], error) {
	cmd := fmt.Sprintf(`dpkg-query -W -f='${Package} ${db:Status-Abbrev}\n' '%s*' 2>/dev/null || true`, i.prefix)
	out, err := host.Execute(ctx, cmd)
	if err != nil {
		return reconcile.Observed[string]{}, fmt.Errorf("failed to query installed packages: %w", err)
	}

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.HasPrefix(fields[1], "ii") {
			continue
		}
		if version, ok := strings.CutPrefix(fields[0], i.prefix); ok && version != "" {
			return reconcile.Found(version), nil
		}
	}
	return reconcile.Absent[string](), nil
}

// Candidates lists installable driver versions, newest first.
func (i *Installer) Candidates(ctx context.Context, host Host) ([]string, error) {
	cmd := fmt.Sprintf(`apt-cache search --names-only '^%s[0-9]+$'`, strings.ReplaceAll(i.prefix, ".", `\.`))
	out, err := host.Execute(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to list driver packages: %w", err)
	}

	var names []string
	for _, line := range strings.Split(out, "\n") {
		if fields := strings.Fields(line); len(fields) > 0 {
			names = append(names, fields[0])
		}
	}
	return SortCandidates(names, i.prefix), nil
}

// Plan returns the driver action for node. An installed driver of any
// version yields a noop without consulting candidates or the selector.
func (i *Installer) Plan(ctx context.Context, node string, host Host) (reconcile.Action, error) {
	action := reconcile.Action{
		Kind:      Kind,
		Target:    node,
		Name:      strings.TrimSuffix(i.prefix, "-"),
		Subsystem: feature.SubsystemGPU,
	}

	observed, err := i.Inspect(ctx, host)
	if err != nil {
		return action, err
	}
	action.Type = reconcile.DecideEnsure(observed)
	if observed.Exists {
		action.Observed = observed.Value
		action.Desired = observed.Value
		return action, nil
	}

	candidates, err := i.Candidates(ctx, host)
	if err != nil {
		return action, err
	}
	version := i.selectFn(candidates, i.fallback)
	action.Desired = version
	action.Apply = func(ctx context.Context) error {
		return i.install(ctx, node, host, version)
	}
	return action, nil
}

func (i *Installer) install(ctx context.Context, node string, host Host, version string) error {
	pkg := i.prefix + version
	cmd := "DEBIAN_FRONTEND=noninteractive apt-get install -y --no-install-recommends " + pkg
	if _, err := host.Execute(ctx, cmd); err != nil {
		return fmt.Errorf("failed to install %s: %w", pkg, err)
	}
	if i.reboot == nil {
		return nil
	}
	if err := i.reboot(ctx, node); err != nil {
		return fmt.Errorf("installed %s but reboot failed: %w", pkg, err)
	}
	return nil
}
