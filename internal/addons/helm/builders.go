package helm

import (
	"fmt"
	"sort"
	"strings"
)

// ControlPlaneTolerations returns tolerations for pods that must also run
// on kubeadm control-plane nodes.
func ControlPlaneTolerations() []Values {
	return []Values{
		{
			"key":      "node-role.kubernetes.io/control-plane",
			"effect":   "NoSchedule",
			"operator": "Exists",
		},
	}
}

// NotReadyToleration lets network agents schedule onto nodes that are not
// ready because no CNI is running yet.
func NotReadyToleration() Values {
	return Values{
		"key":      "node.kubernetes.io/not-ready",
		"operator": "Exists",
	}
}

// NodeSelector returns a nodeSelector matching a single label.
func NodeSelector(key, value string) Values {
	return Values{key: value}
}

// NamespaceManifest generates a Namespace YAML manifest string. Labels
// are emitted in sorted order.
func NamespaceManifest(name string, labels map[string]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "apiVersion: v1\nkind: Namespace\nmetadata:\n  name: %s\n", name)
	if len(labels) > 0 {
		keys := make([]string, 0, len(labels))
		for k := range labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("  labels:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "    %s: %q\n", k, labels[k])
		}
	}
	return sb.String()
}
