package addons

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/imamik/proxk8s/internal/addons/helm"
	"github.com/imamik/proxk8s/internal/addons/k8sclient"
)

// Kind is the reconcile resource kind for chart installs.
const Kind = "Chart"

// clusterTarget serializes core addons in one executor group.
const clusterTarget = "cluster"

// Chart is one addon installed by rendering a chart and applying the result.
type Chart struct {
	// Name is the release name and the key in the addon state ConfigMap.
	Name      string
	Spec      helm.ChartSpec
	Namespace string
	// NamespaceLabels, when set, are applied to the namespace.
	NamespaceLabels map[string]string
	Values          helm.Values

	// Workloads must finish rolling out before the chart counts as installed.
	Workloads []k8sclient.Workload

	// Post is applied after the workloads are ready. PostWebhook names a
	// Service in Namespace whose endpoints must be ready first.
	Post        []byte
	PostWebhook string

	// Subsystem marks charts of an optional subsystem.
	Subsystem string
}

// target returns the executor group of the chart.
func (c Chart) target() string {
	if c.Subsystem != "" {
		return c.Subsystem
	}
	return clusterTarget
}

// Digest fingerprints everything that determines what gets applied.
// Values are encoded as sorted YAML so equal inputs hash identically.
func (c Chart) Digest() (string, error) {
	values, err := c.Values.ToYAML()
	if err != nil {
		return "", fmt.Errorf("failed to encode values of %s: %w", c.Name, err)
	}
	ns, err := helm.Values{"labels": toAny(c.NamespaceLabels)}.ToYAML()
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, part := range [][]byte{
		[]byte(c.Spec.Repository), []byte(c.Spec.String()),
		[]byte(c.Namespace), ns, values, c.Post,
	} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

func toAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
