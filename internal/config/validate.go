package config

import (
	"fmt"

	"github.com/imamik/proxk8s/internal/util/labels"
)

// validate checks cross-field consistency after every value parsed.
func validate(cfg *Config) []string {
	var problems []string
	if cfg.Cluster.Forks < 1 {
		problems = append(problems, fmt.Sprintf("FORKS: must be at least 1, got %d", cfg.Cluster.Forks))
	}

	infra := cfg.Infra
	if infra == nil {
		return problems
	}

	for key, v := range map[string]int{
		"VM_CORES":     infra.VM.Cores,
		"VM_MEMORY_MB": infra.VM.MemoryMB,
		"VM_DISK_GB":   infra.VM.DiskGB,
	} {
		if v <= 0 {
			problems = append(problems, fmt.Sprintf("%s: must be positive, got %d", key, v))
		}
	}

	seenName := make(map[string]bool)
	seenAddr := make(map[string]string)
	for _, node := range infra.AllNodes() {
		if seenName[node.Name] {
			problems = append(problems, fmt.Sprintf("node %q is declared more than once", node.Name))
		}
		seenName[node.Name] = true
		if other, dup := seenAddr[node.Address.String()]; dup {
			problems = append(problems, fmt.Sprintf("nodes %q and %q share address %s", other, node.Name, node.Address))
		}
		seenAddr[node.Address.String()] = node.Name
	}

	protected := labels.ProtectedPrefixes(infra.Labels.ProtectedPrefixes)
	for _, node := range sortedKeys(infra.Labels.Nodes) {
		if !seenName[node] {
			problems = append(problems, fmt.Sprintf("NODE_LABELS: node %q is not in the inventory", node))
		}
		for _, key := range sortedKeys(infra.Labels.Nodes[node]) {
			if labels.IsProtected(key, protected) {
				problems = append(problems, fmt.Sprintf("NODE_LABELS: %s on %s uses a protected prefix", key, node))
			}
		}
	}

	if r := infra.Network.LoadBalancerRange; r != "" {
		if _, _, err := ParseAddressRange(r); err != nil {
			problems = append(problems, fmt.Sprintf("LOADBALANCER_RANGE: %v", err))
		}
	}
	return problems
}
