package addons

import (
	"github.com/imamik/proxk8s/internal/addons/helm"
	"github.com/imamik/proxk8s/internal/addons/k8sclient"
	"github.com/imamik/proxk8s/internal/config"
)

// ArgoCDChart installs Argo CD, the GitOps controller that syncs the
// application repository.
//
// See: https://argo-cd.readthedocs.io/
func ArgoCDChart(g config.GitOpsConfig) (Chart, error) {
	c, err := chart("argo-cd", "argocd", g.Namespace)
	if err != nil {
		return Chart{}, err
	}
	c.Values = buildArgoCDValues()
	c.Workloads = []k8sclient.Workload{
		{Kind: k8sclient.KindDeployment, Namespace: g.Namespace, Name: "argocd-server"},
		{Kind: k8sclient.KindDeployment, Namespace: g.Namespace, Name: "argocd-repo-server"},
		{Kind: k8sclient.KindDeployment, Namespace: g.Namespace, Name: "argocd-redis"},
	}
	return c, nil
}

// buildArgoCDValues creates helm values for Argo CD configuration.
func buildArgoCDValues() helm.Values {
	return helm.Values{
		// Object names become argocd-server, argocd-repo-server, ...
		"fullnameOverride": "argocd",
		"crds": helm.Values{
			"install": true,
			"keep":    true,
		},
		// This is a top-level key, not nested under redis.
		"redisSecretInit": helm.Values{
			"enabled": false,
		},
		"dex": helm.Values{
			"enabled": false,
		},
		"notifications": helm.Values{
			"enabled": false,
		},
		"applicationSet": helm.Values{
			"replicas": 1,
		},
		"configs": helm.Values{
			"params": helm.Values{
				"server.insecure": true,
			},
		},
	}
}
