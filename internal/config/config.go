package config

import (
	"net/netip"
)

// Scope selects which part of the desired state must be resolved.
type Scope int

const (
	// ScopeFull resolves everything needed to build a cluster from bare VMs.
	ScopeFull Scope = iota
	// ScopeGitOps resolves only what the GitOps reconciliation needs.
	ScopeGitOps
)

// String returns the scope name.
func (s Scope) String() string {
	if s == ScopeGitOps {
		return "gitops"
	}
	return "full"
}

// Config is the resolved desired state. It is never mutated after Resolve
// returns.
type Config struct {
	Cluster   ClusterConfig
	GitOps    GitOpsConfig
	Artifacts ArtifactsConfig

	// Infra is nil when the config was resolved with ScopeGitOps.
	Infra *InfraConfig

	Timeouts *Timeouts
}

// ClusterConfig identifies the cluster and how it is reached.
type ClusterConfig struct {
	Name           string `env:"CLUSTER_NAME,required,notEmpty"`
	KubeconfigPath string `env:"KUBECONFIG_PATH,required,notEmpty"`
	// Forks bounds how many independent targets are reconciled at once.
	Forks int `env:"FORKS" envDefault:"5"`
}

// InfraConfig holds everything below the Kubernetes API: hypervisor,
// virtual machines, host operating system and optional subsystems.
type InfraConfig struct {
	Proxmox    ProxmoxConfig
	VM         VMConfig
	Inventory  InventoryConfig
	Kubernetes KubernetesConfig
	SSH        SSHConfig
	Host       HostConfig
	Labels     LabelConfig
	Network    NetworkConfig
	Storage    StorageConfig
	GPU        GPUConfig
}

// ProxmoxConfig describes the hypervisor API endpoint and placement.
type ProxmoxConfig struct {
	Host        string `env:"PROXMOX_HOST,required,notEmpty"`
	Node        string `env:"PROXMOX_NODE,required,notEmpty"`
	TokenID     string `env:"PROXMOX_TOKEN_ID,required,notEmpty"`
	TokenSecret string `env:"PROXMOX_TOKEN_SECRET,required,notEmpty"`
	Storage     string `env:"PROXMOX_STORAGE,required,notEmpty"`
	ISOImage    string `env:"PROXMOX_ISO_IMAGE,required,notEmpty"`
	ISOStorage  string `env:"PROXMOX_ISO_STORAGE" envDefault:"local"`
	Bridge      string `env:"PROXMOX_BRIDGE,required,notEmpty"`
	VerifyTLS   bool   `env:"PROXMOX_VERIFY_TLS" envDefault:"true"`
}

// VMConfig sizes every cluster VM.
type VMConfig struct {
	Cores    int `env:"VM_CORES,required"`
	MemoryMB int `env:"VM_MEMORY_MB,required"`
	DiskGB   int `env:"VM_DISK_GB,required"`
}

// InventoryConfig lists the cluster nodes.
type InventoryConfig struct {
	ControlPlanes Nodes `env:"CONTROL_PLANE_NODES,required,notEmpty"`
	Workers       Nodes `env:"WORKER_NODES,required"`
}

// KubernetesConfig pins the cluster software.
type KubernetesConfig struct {
	Version        string       `env:"KUBERNETES_VERSION,required,notEmpty"`
	PodNetworkCIDR netip.Prefix `env:"POD_NETWORK_CIDR,required,notEmpty"`
}

// SSHConfig describes how hosts are reached.
type SSHConfig struct {
	User           string `env:"SSH_USER,required,notEmpty"`
	PrivateKeyPath string `env:"SSH_PRIVATE_KEY_PATH,required,notEmpty"`
}

// HostConfig is the operating system state every node must have.
type HostConfig struct {
	Packages      []string `env:"HOST_PACKAGES" envSeparator:","`
	KernelModules []string `env:"KERNEL_MODULES" envSeparator:","`
}

// LabelConfig declares node labels owned by proxk8s.
type LabelConfig struct {
	Nodes NodeLabels `env:"NODE_LABELS"`
	// ProtectedPrefixes extends the built-in protected label domains.
	ProtectedPrefixes []string `env:"PROTECTED_LABEL_PREFIXES" envSeparator:","`
}

// NetworkConfig configures in-cluster networking addons.
type NetworkConfig struct {
	// LoadBalancerRange is "first-last" or a CIDR. Empty disables the
	// address pool.
	LoadBalancerRange string `env:"LOADBALANCER_RANGE"`
}

// StorageConfig holds the raw NFS provisioner settings. Only the flag is
// validated during resolution.
type StorageConfig struct {
	Enabled   bool   `env:"STORAGE_ENABLED,required"`
	NFSServer string `env:"STORAGE_NFS_SERVER"`
	NFSPath   string `env:"STORAGE_NFS_PATH"`
	ClassName string `env:"STORAGE_CLASS_NAME" envDefault:"nfs-client"`
}

// GPUConfig holds the raw GPU passthrough settings. Only the flag is
// validated during resolution.
type GPUConfig struct {
	Enabled             bool     `env:"GPU_ENABLED,required"`
	Nodes               []string `env:"GPU_NODES" envSeparator:","`
	PCIDevices          []string `env:"GPU_PCI_DEVICES" envSeparator:","`
	DriverFallback      string   `env:"GPU_DRIVER_FALLBACK"`
	DriverPackagePrefix string   `env:"GPU_DRIVER_PACKAGE_PREFIX" envDefault:"nvidia-driver-"`
}

// GitOpsConfig describes the application repository and the Argo CD
// objects that track it.
type GitOpsConfig struct {
	RepoURL       string `env:"GITOPS_REPO_URL,required,notEmpty"`
	ProviderToken string `env:"GIT_PROVIDER_TOKEN"`
	// ProviderAPIURL overrides the provider API base, for self-hosted
	// GitLab or GitHub Enterprise.
	ProviderAPIURL   string       `env:"GIT_PROVIDER_API_URL"`
	Namespace        string       `env:"GITOPS_NAMESPACE" envDefault:"argocd"`
	KeyConfigMap     string       `env:"DEPLOY_KEY_CONFIGMAP" envDefault:"gitops-deploy-key"`
	RepositorySecret string       `env:"GITOPS_REPOSITORY_SECRET" envDefault:"gitops-repository"`
	Applications     Applications `env:"GITOPS_APPLICATIONS,required,notEmpty"`
	Revision         string       `env:"GITOPS_REVISION" envDefault:"HEAD"`
}

// ArtifactsConfig controls where run artifacts are written.
type ArtifactsConfig struct {
	Dir         string `env:"ARTIFACTS_DIR" envDefault:"artifacts"`
	S3Bucket    string `env:"ARTIFACTS_S3_BUCKET"`
	S3Endpoint  string `env:"ARTIFACTS_S3_ENDPOINT"`
	S3Region    string `env:"ARTIFACTS_S3_REGION" envDefault:"us-east-1"`
	S3AccessKey string `env:"ARTIFACTS_S3_ACCESS_KEY"`
	S3SecretKey string `env:"ARTIFACTS_S3_SECRET_KEY"`
}

// UploadEnabled reports whether artifacts should be copied to object storage.
func (a ArtifactsConfig) UploadEnabled() bool {
	return a.S3Bucket != ""
}

// AllNodes returns control planes followed by workers.
func (i *InfraConfig) AllNodes() Nodes {
	out := make(Nodes, 0, len(i.Inventory.ControlPlanes)+len(i.Inventory.Workers))
	out = append(out, i.Inventory.ControlPlanes...)
	return append(out, i.Inventory.Workers...)
}

// IsControlPlane reports whether name is a control-plane node.
func (i *InfraConfig) IsControlPlane(name string) bool {
	_, ok := i.Inventory.ControlPlanes.Find(name)
	return ok
}
