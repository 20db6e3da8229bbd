package hostprep

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/imamik/proxk8s/internal/platform/ssh"
	"github.com/imamik/proxk8s/internal/reconcile"
	"github.com/imamik/proxk8s/internal/util/naming"
)

// Resource kinds used in plans and reports.
const (
	KindPackageIndex = "PackageIndex"
	KindPackage      = "Package"
	KindKernelModule = "KernelModule"
	KindFile         = "File"
	KindSwap         = "Swap"
)

// sysctlFile holds the kernel parameters kube-proxy and the CNI rely on.
const sysctlFile = "/etc/sysctl.d/99-kubernetes.conf"

var sysctlContent = strings.Join([]string{
	"net.bridge.bridge-nf-call-iptables = 1",
	"net.bridge.bridge-nf-call-ip6tables = 1",
	"net.ipv4.ip_forward = 1",
}, "\n") + "\n"

// Spec is the desired host state shared by all nodes.
type Spec struct {
	Cluster       string
	Packages      []string
	KernelModules []string
}

// Planner inspects a host and plans the actions that converge it.
type Planner struct {
	spec Spec
}

// NewPlanner creates a planner. Packages and modules are deduplicated and
// sorted so that plans are stable across runs.
func NewPlanner(spec Spec) *Planner {
	spec.Packages = uniqueSorted(spec.Packages)
	spec.KernelModules = uniqueSorted(spec.KernelModules)
	return &Planner{spec: spec}
}

// Plan adds the actions for node to plan. Actions for one node keep their
// order: package index, packages, modules, module file, sysctl, swap.
func (p *Planner) Plan(ctx context.Context, node string, host Host, plan *reconcile.Plan) error {
	missing := make([]string, 0, len(p.spec.Packages))
	for _, pkg := range p.spec.Packages {
		installed, err := packageInstalled(ctx, host, pkg)
		if err != nil {
			return err
		}
		if !installed {
			missing = append(missing, pkg)
		}
	}

	if len(missing) > 0 {
		plan.Add(reconcile.Action{
			Kind: KindPackageIndex, Target: node, Name: "apt", Type: reconcile.ActionUpdate,
			Apply: func(ctx context.Context) error {
				_, err := host.Execute(ctx, "DEBIAN_FRONTEND=noninteractive apt-get update -q")
				return err
			},
		})
	}
	for _, pkg := range p.spec.Packages {
		observed := reconcile.Found(pkg)
		if slices.Contains(missing, pkg) {
			observed = reconcile.Absent[string]()
		}
		action := reconcile.Action{
			Kind: KindPackage, Target: node, Name: pkg,
			Type: reconcile.DecideEnsure(observed), Desired: "present",
		}
		if action.Type != reconcile.ActionNoop {
			action.Observed = "absent"
			action.Apply = func(ctx context.Context) error {
				cmd := "DEBIAN_FRONTEND=noninteractive apt-get install -y --no-install-recommends " + ssh.Quote(pkg)
				_, err := host.Execute(ctx, cmd)
				return err
			}
		}
		plan.Add(action)
	}

	for _, mod := range p.spec.KernelModules {
		loaded, err := host.Check(ctx, "test -d "+ssh.Quote("/sys/module/"+mod))
		if err != nil {
			return fmt.Errorf("failed to inspect kernel module %s: %w", mod, err)
		}
		observed := reconcile.Absent[string]()
		if loaded {
			observed = reconcile.Found(mod)
		}
		action := reconcile.Action{
			Kind: KindKernelModule, Target: node, Name: mod,
			Type: reconcile.DecideEnsure(observed), Desired: "loaded",
		}
		if action.Type != reconcile.ActionNoop {
			action.Observed = "not loaded"
			action.Apply = func(ctx context.Context) error {
				_, err := host.Execute(ctx, "modprobe "+ssh.Quote(mod))
				return err
			}
		}
		plan.Add(action)
	}

	if len(p.spec.KernelModules) > 0 {
		content := strings.Join(p.spec.KernelModules, "\n") + "\n"
		if err := planFile(ctx, node, host, plan, naming.ModulesLoadFile(p.spec.Cluster), content, ""); err != nil {
			return err
		}
	}
	if err := planFile(ctx, node, host, plan, sysctlFile, sysctlContent, "sysctl --system"); err != nil {
		return err
	}

	return planSwap(ctx, node, host, plan)
}

// planFile ensures path holds content, running after once it was written.
func planFile(ctx context.Context, node string, host Host, plan *reconcile.Plan, path, content, after string) error {
	current, err := host.Execute(ctx, "cat "+ssh.Quote(path)+" 2>/dev/null || true")
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	observed := reconcile.Absent[string]()
	if current != "" {
		observed = reconcile.Found(current)
	}
	action := reconcile.Action{
		Kind: KindFile, Target: node, Name: path,
		Type: reconcile.Decide(content, observed, func(a, b string) bool { return a == b }),
	}
	if action.Type != reconcile.ActionNoop {
		action.Apply = func(ctx context.Context) error {
			if err := host.WriteFile(ctx, path, content, 0o644); err != nil {
				return err
			}
			if after == "" {
				return nil
			}
			_, err := host.Execute(ctx, after)
			return err
		}
	}
	plan.Add(action)
	return nil
}

// planSwap disables active swap, which kubelet refuses to run with.
func planSwap(ctx context.Context, node string, host Host, plan *reconcile.Plan) error {
	out, err := host.Execute(ctx, "swapon --noheadings --show=NAME")
	if err != nil {
		return fmt.Errorf("failed to inspect swap: %w", err)
	}
	observed := reconcile.Absent[string]()
	if active := strings.TrimSpace(out); active != "" {
		observed = reconcile.Found(active)
	}
	action := reconcile.Action{
		Kind: KindSwap, Target: node, Name: "swap",
		Type: reconcile.DecideAbsent(observed), Desired: "off", Observed: observed.Value,
	}
	if action.Type != reconcile.ActionNoop {
		action.Apply = func(ctx context.Context) error {
			_, err := host.Execute(ctx, `swapoff -a && sed -i.bak '/\sswap\s/s/^#*/#/' /etc/fstab`)
			return err
		}
	}
	plan.Add(action)
	return nil
}

func packageInstalled(ctx context.Context, host Host, pkg string) (bool, error) {
	out, err := host.Execute(ctx, "dpkg-query -W -f='${db:Status-Abbrev}' "+ssh.Quote(pkg)+" 2>/dev/null || true")
	if err != nil {
		return false, fmt.Errorf("failed to inspect package %s: %w", pkg, err)
	}
	return strings.HasPrefix(strings.TrimSpace(out), "ii"), nil
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
