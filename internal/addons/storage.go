package addons

import (
	"github.com/imamik/proxk8s/internal/addons/helm"
	"github.com/imamik/proxk8s/internal/addons/k8sclient"
	"github.com/imamik/proxk8s/internal/feature"
)

const storageNamespace = "nfs-provisioner"

// ProvisionerReplicas is the NFS provisioner replica count for a cluster
// with the given number of live workers: at least one, at most two.
func ProvisionerReplicas(workers int) int {
	return min(max(workers, 1), 2)
}

// StorageChart returns the NFS subdir provisioner sized for workers.
func StorageChart(s feature.StorageSettings, workers int) (Chart, error) {
	c, err := chart("nfs-subdir-external-provisioner", "nfs-subdir-external-provisioner", storageNamespace)
	if err != nil {
		return Chart{}, err
	}
	replicas := ProvisionerReplicas(workers)

	c.Subsystem = feature.SubsystemStorage
	c.Values = helm.Values{
		"replicaCount": replicas,
		"nfs": helm.Values{
			"server": s.Server.String(),
			"path":   s.Path,
		},
		"storageClass": helm.Values{
			"name":         s.ClassName,
			"defaultClass": true,
		},
		// Leader election is required once more than one replica runs.
		"leaderElection": helm.Values{
			"enabled": replicas > 1,
		},
	}
	c.Workloads = []k8sclient.Workload{
		{Kind: k8sclient.KindDeployment, Namespace: storageNamespace, Name: "nfs-subdir-external-provisioner"},
	}
	return c, nil
}
