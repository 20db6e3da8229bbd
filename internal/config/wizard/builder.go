package wizard

import "strconv"

// BuildSource converts wizard answers into configuration keys. Values the
// wizard does not ask for get placeholders the user is expected to edit.
func BuildSource(r *Result) map[string]string {
	source := map[string]string{
		"CLUSTER_NAME":         r.ClusterName,
		"KUBECONFIG_PATH":      r.ClusterName + ".kubeconfig",
		"PROXMOX_HOST":         r.ProxmoxHost,
		"PROXMOX_NODE":         r.ProxmoxNode,
		"PROXMOX_TOKEN_ID":     r.ProxmoxTokenID,
		"PROXMOX_STORAGE":      r.ProxmoxStorage,
		"PROXMOX_BRIDGE":       r.ProxmoxBridge,
		"PROXMOX_ISO_IMAGE":    r.ISOImage,
		"VM_CORES":             "4",
		"VM_MEMORY_MB":         "8192",
		"VM_DISK_GB":           "64",
		"CONTROL_PLANE_NODES":  r.ControlPlanes,
		"WORKER_NODES":         r.Workers,
		"KUBERNETES_VERSION":   r.KubernetesVersion,
		"POD_NETWORK_CIDR":     "10.244.0.0/16",
		"SSH_USER":             "ubuntu",
		"SSH_PRIVATE_KEY_PATH": "~/.ssh/id_ed25519",
		"KERNEL_MODULES":       "br_netfilter,overlay",
		"STORAGE_ENABLED":      strconv.FormatBool(r.EnableStorage),
		"GPU_ENABLED":          strconv.FormatBool(r.EnableGPU),
		"GITOPS_REPO_URL":      r.RepoURL,
		"GITOPS_APPLICATIONS":  r.Applications,
	}
	if r.EnableStorage {
		source["STORAGE_NFS_SERVER"] = ""
		source["STORAGE_NFS_PATH"] = ""
	}
	if r.EnableGPU {
		source["GPU_NODES"] = ""
		source["GPU_PCI_DEVICES"] = ""
	}
	return source
}
