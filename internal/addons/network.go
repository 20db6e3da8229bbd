package addons

import (
	"fmt"

	"github.com/imamik/proxk8s/internal/addons/helm"
	"github.com/imamik/proxk8s/internal/addons/k8sclient"
	"github.com/imamik/proxk8s/internal/config"
	"github.com/imamik/proxk8s/internal/util/naming"
)

const (
	metallbNamespace = "metallb-system"
	metallbWebhook   = "metallb-webhook-service"
)

// NetworkCharts returns the CNI and load-balancer charts. The MetalLB
// pool is only created when a load-balancer range is configured.
func NetworkCharts(cluster string, infra *config.InfraConfig) ([]Chart, error) {
	cilium, err := chart("cilium", "cilium", "kube-system")
	if err != nil {
		return nil, err
	}
	cilium.Values = buildCiliumValues(infra)
	cilium.Workloads = []k8sclient.Workload{
		{Kind: k8sclient.KindDaemonSet, Namespace: "kube-system", Name: "cilium"},
		{Kind: k8sclient.KindDeployment, Namespace: "kube-system", Name: "cilium-operator"},
	}

	metallb, err := chart("metallb", "metallb", metallbNamespace)
	if err != nil {
		return nil, err
	}
	metallb.NamespaceLabels = map[string]string{
		"pod-security.kubernetes.io/enforce": "privileged",
		"pod-security.kubernetes.io/audit":   "privileged",
		"pod-security.kubernetes.io/warn":    "privileged",
	}
	metallb.Values = helm.Values{
		"speaker": helm.Values{
			"tolerations": helm.ControlPlaneTolerations(),
		},
	}
	metallb.Workloads = []k8sclient.Workload{
		{Kind: k8sclient.KindDeployment, Namespace: metallbNamespace, Name: "metallb-controller"},
		{Kind: k8sclient.KindDaemonSet, Namespace: metallbNamespace, Name: "metallb-speaker"},
	}

	if r := infra.Network.LoadBalancerRange; r != "" {
		post, err := addressPool(naming.AddressPool(cluster), r)
		if err != nil {
			return nil, err
		}
		metallb.Post = post
		metallb.PostWebhook = metallbWebhook
	}

	return []Chart{cilium, metallb}, nil
}

// buildCiliumValues configures Cilium alongside kube-proxy. Pod addresses
// come from the node podCIDRs kubeadm carves out of POD_NETWORK_CIDR.
func buildCiliumValues(infra *config.InfraConfig) helm.Values {
	operatorReplicas := min(len(infra.Inventory.ControlPlanes), 2)
	return helm.Values{
		"ipam": helm.Values{
			"mode": "kubernetes",
		},
		"kubeProxyReplacement": false,
		"routingMode":          "tunnel",
		"tunnelProtocol":       "vxlan",
		"operator": helm.Values{
			"replicas":    operatorReplicas,
			"tolerations": append(helm.ControlPlaneTolerations(), helm.NotReadyToleration()),
		},
		"hubble": helm.Values{
			"enabled": false,
		},
	}
}

// addressPool renders the MetalLB pool and its L2 advertisement. MetalLB
// accepts both "first-last" and CIDR notation.
func addressPool(pool, addresses string) ([]byte, error) {
	meta := helm.Values{"name": pool, "namespace": metallbNamespace}
	return helm.Documents(
		helm.Values{
			"apiVersion": "metallb.io/v1beta1",
			"kind":       "IPAddressPool",
			"metadata":   meta,
			"spec":       helm.Values{"addresses": []any{addresses}},
		},
		helm.Values{
			"apiVersion": "metallb.io/v1beta1",
			"kind":       "L2Advertisement",
			"metadata":   meta,
			"spec":       helm.Values{"ipAddressPools": []any{pool}},
		},
	)
}

func chart(addon, release, namespace string) (Chart, error) {
	spec, ok := helm.GetChartSpec(addon)
	if !ok {
		return Chart{}, fmt.Errorf("no chart pinned for %s", addon)
	}
	return Chart{Name: release, Spec: spec, Namespace: namespace}, nil
}
