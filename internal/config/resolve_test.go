package config

import (
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSource() map[string]string {
	return map[string]string{
		"CLUSTER_NAME":         "lab",
		"KUBECONFIG_PATH":      "/tmp/lab.kubeconfig",
		"PROXMOX_HOST":         "pve.example.com:8006",
		"PROXMOX_NODE":         "pve1",
		"PROXMOX_TOKEN_ID":     "root@pam!proxk8s",
		"PROXMOX_TOKEN_SECRET": "secret",
		"PROXMOX_STORAGE":      "local-lvm",
		"PROXMOX_ISO_IMAGE":    "ubuntu-24.04-autoinstall.iso",
		"PROXMOX_BRIDGE":       "vmbr0",
		"VM_CORES":             "4",
		"VM_MEMORY_MB":         "8192",
		"VM_DISK_GB":           "64",
		"CONTROL_PLANE_NODES":  "cp-1=10.0.0.11",
		"WORKER_NODES":         "worker-1=10.0.0.21,worker-2=10.0.0.22",
		"KUBERNETES_VERSION":   "1.31.2",
		"POD_NETWORK_CIDR":     "10.244.0.0/16",
		"SSH_USER":             "ubuntu",
		"SSH_PRIVATE_KEY_PATH": "/home/ubuntu/.ssh/id_ed25519",
		"STORAGE_ENABLED":      "false",
		"GPU_ENABLED":          "false",
		"GITOPS_REPO_URL":      "git@gitlab.com:lab/apps.git",
		"GITOPS_APPLICATIONS":  "apps=apps/base,monitoring=platform/monitoring",
	}
}

func withValues(base map[string]string, kv ...string) map[string]string {
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

func without(base map[string]string, keys ...string) map[string]string {
	out := withValues(base)
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

func TestResolve_Full(t *testing.T) {
	t.Parallel()
	cfg, err := Resolve(withValues(validSource(),
		"HOST_PACKAGES", "curl, nfs-common,,",
		"KERNEL_MODULES", "br_netfilter,overlay",
		"NODE_LABELS", "worker-1:example.com/team=ml",
	), ScopeFull)
	require.NoError(t, err)

	assert.Equal(t, "lab", cfg.Cluster.Name)
	assert.Equal(t, 5, cfg.Cluster.Forks)
	require.NotNil(t, cfg.Infra)
	assert.Equal(t, "local", cfg.Infra.Proxmox.ISOStorage)
	assert.True(t, cfg.Infra.Proxmox.VerifyTLS)
	assert.Equal(t, []string{"cp-1"}, cfg.Infra.Inventory.ControlPlanes.Names())
	assert.Equal(t, netip.MustParseAddr("10.0.0.22"), cfg.Infra.Inventory.Workers[1].Address)
	assert.Equal(t, netip.MustParsePrefix("10.244.0.0/16"), cfg.Infra.Kubernetes.PodNetworkCIDR)
	assert.Equal(t, []string{"curl", "nfs-common"}, cfg.Infra.Host.Packages)
	assert.Equal(t, map[string]string{"example.com/team": "ml"}, cfg.Infra.Labels.Nodes.For("worker-1"))
	assert.Empty(t, cfg.Infra.Labels.Nodes.For("worker-2"))
	assert.Equal(t, "argocd", cfg.GitOps.Namespace)
	assert.Equal(t, "HEAD", cfg.GitOps.Revision)
	assert.Len(t, cfg.GitOps.Applications, 2)
	assert.Equal(t, "artifacts", cfg.Artifacts.Dir)
	assert.False(t, cfg.Artifacts.UploadEnabled())
	assert.NotNil(t, cfg.Timeouts)
}

func TestResolve_GitOpsScopeIgnoresInfraKeys(t *testing.T) {
	t.Parallel()
	source := map[string]string{
		"CLUSTER_NAME":        "lab",
		"KUBECONFIG_PATH":     "/tmp/kubeconfig",
		"GITOPS_REPO_URL":     "https://github.com/lab/apps.git",
		"GITOPS_APPLICATIONS": "apps=apps",
	}

	cfg, err := Resolve(source, ScopeGitOps)
	require.NoError(t, err)
	assert.Nil(t, cfg.Infra)
	assert.Equal(t, "gitops", ScopeGitOps.String())
}

func TestResolve_ReportsEveryMissingKey(t *testing.T) {
	t.Parallel()
	_, err := Resolve(without(validSource(), "PROXMOX_HOST", "VM_CORES", "GPU_ENABLED", "GITOPS_REPO_URL"), ScopeFull)
	require.Error(t, err)

	var missing *MissingConfigurationError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"GITOPS_REPO_URL", "GPU_ENABLED", "PROXMOX_HOST", "VM_CORES"}, missing.Keys)
	assert.Contains(t, err.Error(), "PROXMOX_HOST, VM_CORES")
}

func TestResolve_MissingKeysAreNotAlsoInvalid(t *testing.T) {
	t.Parallel()
	_, err := Resolve(without(validSource(), "VM_CORES", "CONTROL_PLANE_NODES"), ScopeFull)
	require.Error(t, err)

	var missing *MissingConfigurationError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"CONTROL_PLANE_NODES", "VM_CORES"}, missing.Keys)

	var invalid *InvalidConfigurationError
	assert.False(t, errors.As(err, &invalid), "got %v", err)
	assert.NotContains(t, err.Error(), "must be positive")
}

func TestResolve_EmptyRequiredValueIsMissing(t *testing.T) {
	t.Parallel()
	_, err := Resolve(withValues(validSource(), "CLUSTER_NAME", ""), ScopeFull)

	var missing *MissingConfigurationError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"CLUSTER_NAME"}, missing.Keys)
}

func TestResolve_EmptyWorkerListIsAllowed(t *testing.T) {
	t.Parallel()
	cfg, err := Resolve(withValues(validSource(), "WORKER_NODES", ""), ScopeFull)
	require.NoError(t, err)
	assert.Empty(t, cfg.Infra.Inventory.Workers)
}

func TestResolve_InvalidValues(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		key     string
		value   string
		problem string
	}{
		{"boolean is not coerced", "STORAGE_ENABLED", "yes", "STORAGE_ENABLED"},
		{"integer", "VM_CORES", "four", "VM_CORES"},
		{"non-positive integer", "VM_DISK_GB", "0", "VM_DISK_GB"},
		{"ip literal", "WORKER_NODES", "worker-1=10.0.0.300", "WORKER_NODES"},
		{"node entry", "CONTROL_PLANE_NODES", "cp-1", "CONTROL_PLANE_NODES"},
		{"cidr", "POD_NETWORK_CIDR", "10.244.0.0", "POD_NETWORK_CIDR"},
		{"application", "GITOPS_APPLICATIONS", "Apps=", "GITOPS_APPLICATIONS"},
		{"forks", "FORKS", "0", "FORKS"},
		{"lb range", "LOADBALANCER_RANGE", "10.0.0.50-10.0.0.40", "LOADBALANCER_RANGE"},
		{"label key", "NODE_LABELS", "worker-1:bad key=1", "NODE_LABELS"},
		{"label node", "NODE_LABELS", "ghost:team=ml", "not in the inventory"},
		{"protected label", "NODE_LABELS", "worker-1:node-role.kubernetes.io/gpu=true", "protected prefix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Resolve(withValues(validSource(), tt.key, tt.value), ScopeFull)
			require.Error(t, err)

			var invalid *InvalidConfigurationError
			require.True(t, errors.As(err, &invalid), "got %v", err)
			assert.Contains(t, err.Error(), tt.problem)

			var missing *MissingConfigurationError
			assert.False(t, errors.As(err, &missing))
		})
	}
}

func TestResolve_ExtraProtectedPrefix(t *testing.T) {
	t.Parallel()
	_, err := Resolve(withValues(validSource(),
		"PROTECTED_LABEL_PREFIXES", "example.com",
		"NODE_LABELS", "worker-1:example.com/team=ml",
	), ScopeFull)

	var invalid *InvalidConfigurationError
	require.True(t, errors.As(err, &invalid))
}

func TestResolve_MissingAndInvalidTogether(t *testing.T) {
	t.Parallel()
	_, err := Resolve(withValues(without(validSource(), "SSH_USER"), "GPU_ENABLED", "maybe"), ScopeFull)

	var missing *MissingConfigurationError
	var invalid *InvalidConfigurationError
	assert.True(t, errors.As(err, &missing))
	assert.True(t, errors.As(err, &invalid))
}

func TestResolve_SubsystemKeysNotValidated(t *testing.T) {
	t.Parallel()
	cfg, err := Resolve(withValues(validSource(),
		"STORAGE_NFS_SERVER", "not-an-ip",
		"GPU_NODES", "nonexistent",
	), ScopeFull)
	require.NoError(t, err)
	assert.Equal(t, "not-an-ip", cfg.Infra.Storage.NFSServer)
}

func TestResolve_IsDeterministic(t *testing.T) {
	t.Parallel()
	a, err := Resolve(validSource(), ScopeFull)
	require.NoError(t, err)
	b, err := Resolve(validSource(), ScopeFull)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestSource_FileOverlaidByEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CLUSTER_NAME=from-file\nPROXK8S_TEST_ONLY=file\n"), 0o600))
	t.Setenv("PROXK8S_TEST_ONLY", "env")

	source, err := Source(path, true)
	require.NoError(t, err)
	assert.Equal(t, "from-file", source["CLUSTER_NAME"])
	assert.Equal(t, "env", source["PROXK8S_TEST_ONLY"])
}

func TestSource_MissingFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "absent.env")

	_, err := Source(path, false)
	require.NoError(t, err)

	_, err = Source(path, true)
	require.Error(t, err)
}
