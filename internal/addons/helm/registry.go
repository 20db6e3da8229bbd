package helm

// DefaultChartSpecs contains the pinned chart for each addon.
var DefaultChartSpecs = map[string]ChartSpec{
	"cilium": {
		Repository: "https://helm.cilium.io",
		Name:       "cilium",
		Version:    "1.18.5",
	},
	"metallb": {
		Repository: "https://metallb.github.io/metallb",
		Name:       "metallb",
		Version:    "0.15.2",
	},
	"nfs-subdir-external-provisioner": {
		Repository: "https://kubernetes-sigs.github.io/nfs-subdir-external-provisioner",
		Name:       "nfs-subdir-external-provisioner",
		Version:    "4.0.18",
	},
	"nvidia-device-plugin": {
		Repository: "https://nvidia.github.io/k8s-device-plugin",
		Name:       "nvidia-device-plugin",
		Version:    "0.17.1",
	},
	"argo-cd": {
		Repository: "https://argoproj.github.io/argo-helm",
		Name:       "argo-cd",
		Version:    "9.3.5",
	},
}
