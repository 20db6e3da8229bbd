package nodelabels

import (
	"github.com/imamik/proxk8s/internal/config"
	"github.com/imamik/proxk8s/internal/feature"
	"github.com/imamik/proxk8s/internal/util/labels"
)

// Desired computes the owned label set for every inventory node from the
// resolved config and gates.
func Desired(cluster string, infra *config.InfraConfig, gates feature.Gates) map[string]Set {
	gpu, _ := gates.GPU.Settings()

	out := make(map[string]Set)
	for _, node := range infra.AllNodes() {
		role := labels.RoleWorker
		if infra.IsControlPlane(node.Name) {
			role = labels.RoleControlPlane
		}
		lb := labels.NewLabelBuilder(cluster).
			WithRole(role).
			Merge(infra.Labels.Nodes.For(node.Name))
		if gpu.Has(node.Name) {
			lb.Merge(map[string]string{labels.KeyAccelerator: labels.AcceleratorNVIDIA})
		}
		out[node.Name] = Set(lb.Build())
	}
	return out
}
