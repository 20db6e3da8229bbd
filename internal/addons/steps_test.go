package addons

import (
	"context"
	"errors"
	"net/netip"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/proxk8s/internal/addons/k8sclient"
	"github.com/imamik/proxk8s/internal/config"
	"github.com/imamik/proxk8s/internal/feature"
	"github.com/imamik/proxk8s/internal/provisioning"
	"github.com/imamik/proxk8s/internal/reconcile"
)

func stubRender(context.Context, Chart) ([]byte, error) {
	return []byte("kind: ConfigMap\n"), nil
}

func phaseContext(cluster *fakeCluster, gates feature.Gates, kubeCalls *atomic.Int32) *provisioning.Context {
	cfg := &config.Config{
		Cluster: config.ClusterConfig{Name: "lab", Forks: 2},
		GitOps:  config.GitOpsConfig{Namespace: "argocd"},
		Infra: &config.InfraConfig{
			Inventory: config.InventoryConfig{
				ControlPlanes: config.Nodes{{Name: "cp-1", Address: netip.MustParseAddr("10.0.0.11")}},
			},
			Kubernetes: config.KubernetesConfig{Version: "v1.33.2"},
			Network:    config.NetworkConfig{LoadBalancerRange: "10.0.0.200-10.0.0.210"},
		},
		Timeouts: config.FastTimeouts(),
	}
	ctx := provisioning.NewContext(context.Background(), cfg, gates)
	ctx.NewKubeClient = func([]byte) (k8sclient.Client, error) {
		kubeCalls.Add(1)
		return cluster, nil
	}
	ctx.State.SetKubeconfig([]byte("fake"))
	return ctx
}

func storageGate() feature.Gate[feature.StorageSettings] {
	return feature.Enable(feature.SubsystemStorage, feature.StorageSettings{
		Server: netip.MustParseAddr("10.0.0.5"), Path: "/export", ClassName: "nfs-client",
	})
}

func gpuGate() feature.Gate[feature.GPUSettings] {
	return feature.Enable(feature.SubsystemGPU, feature.GPUSettings{
		Devices: map[string]string{"w-1": "0000:01:00.0"},
	})
}

func TestStorageGPUPhase_DisabledMakesNoCalls(t *testing.T) {
	t.Parallel()

	var kubeCalls atomic.Int32
	cluster := newFakeCluster()
	ctx := phaseContext(cluster, feature.Gates{}, &kubeCalls)

	p := NewStorageGPUPhase()
	p.Render = stubRender
	require.NoError(t, p.Provision(ctx))

	assert.Zero(t, kubeCalls.Load())
	assert.Zero(t, cluster.appliedCount())
	assert.Empty(t, ctx.Report.Outcomes())
}

func TestStorageGPUPhase_InstallsEnabledSubsystems(t *testing.T) {
	t.Parallel()

	var kubeCalls atomic.Int32
	cluster := newFakeCluster()
	cluster.workers = 5
	cluster.pods = 1
	ctx := phaseContext(cluster, feature.Gates{Storage: storageGate(), GPU: gpuGate()}, &kubeCalls)

	var replicas any
	p := NewStorageGPUPhase()
	p.Render = func(ctx context.Context, c Chart) ([]byte, error) {
		if c.Subsystem == feature.SubsystemStorage {
			replicas = c.Values["replicaCount"]
		}
		return stubRender(ctx, c)
	}
	require.NoError(t, p.Provision(ctx))

	assert.Equal(t, 2, replicas)
	assert.True(t, ctx.Report.Converged())
	assert.Equal(t, 2, ctx.Report.Count(reconcile.StatusChanged))
	assert.Equal(t, 1, ctx.Report.Count(reconcile.StatusUnchanged), "plugin pods already scheduled")
}

func TestStorageGPUPhase_FailureIsIsolated(t *testing.T) {
	t.Parallel()

	var kubeCalls atomic.Int32
	cluster := newFakeCluster()
	cluster.pods = 1
	ctx := phaseContext(cluster, feature.Gates{Storage: storageGate(), GPU: gpuGate()}, &kubeCalls)

	p := NewStorageGPUPhase()
	p.Render = func(_ context.Context, c Chart) ([]byte, error) {
		if c.Subsystem == feature.SubsystemStorage {
			return nil, errors.New("chart repository unavailable")
		}
		return stubRender(context.Background(), c)
	}
	require.NoError(t, p.Provision(ctx), "optional subsystem failures are not fatal")

	failures := ctx.Report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, feature.SubsystemStorage, failures[0].Subsystem)
	assert.True(t, reconcile.IsOptionalSubsystemFailure(failures[0].Err))
	assert.Equal(t, 1, ctx.Report.Count(reconcile.StatusChanged), "gpu chart still installed")
}

func TestStorageGPUPhase_KubeErrorIsIsolated(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Cluster: config.ClusterConfig{Name: "lab", KubeconfigPath: "/nonexistent"}, Timeouts: config.FastTimeouts()}
	ctx := provisioning.NewContext(context.Background(), cfg, feature.Gates{Storage: storageGate()})

	require.NoError(t, NewStorageGPUPhase().Provision(ctx))

	failures := ctx.Report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, KindInspection, failures[0].Kind)
	assert.Equal(t, feature.SubsystemStorage, failures[0].Subsystem)
}

func TestNetworkPhase_FailureIsFatal(t *testing.T) {
	t.Parallel()

	var kubeCalls atomic.Int32
	cluster := newFakeCluster()
	cluster.waitErr = errors.New("rollout stuck")
	ctx := phaseContext(cluster, feature.Gates{}, &kubeCalls)

	p := NewNetworkPhase()
	p.Render = stubRender
	err := p.Provision(ctx)
	require.Error(t, err)
	assert.False(t, reconcile.IsOptionalSubsystemFailure(err))
}

func TestGitOpsPlatformPhase(t *testing.T) {
	t.Parallel()

	var kubeCalls atomic.Int32
	cluster := newFakeCluster()
	ctx := phaseContext(cluster, feature.Gates{}, &kubeCalls)

	p := NewGitOpsPlatformPhase()
	p.Render = stubRender
	require.NoError(t, p.Provision(ctx))
	assert.Equal(t, 1, ctx.Report.Count(reconcile.StatusChanged))

	again := phaseContext(cluster, feature.Gates{}, &kubeCalls)
	require.NoError(t, p.Provision(again))
	assert.Equal(t, 1, again.Report.Count(reconcile.StatusUnchanged))
}
