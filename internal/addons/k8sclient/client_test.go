package k8sclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"github.com/imamik/proxk8s/internal/util/retry"
)

func TestEnsureNamespace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := setupTestClient(t, &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "existing"}})

	require.NoError(t, c.EnsureNamespace(ctx, "existing"))
	require.NoError(t, c.EnsureNamespace(ctx, "argocd"))

	cs := c.(*client).clientset
	_, err := cs.CoreV1().Namespaces().Get(ctx, "argocd", metav1.GetOptions{})
	require.NoError(t, err)
}

func TestCountWorkers(t *testing.T) {
	t.Parallel()
	c := setupTestClient(t,
		node("cp-1", map[string]string{ControlPlaneRoleLabel: ""}),
		node("w-1", nil),
		node("w-2", map[string]string{"proxk8s.io/role": "worker"}),
	)

	n, err := c.CountWorkers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRolloutComplete_Deployment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status appsv1.DeploymentStatus
		want   bool
	}{
		{
			name:   "fully available",
			status: appsv1.DeploymentStatus{ObservedGeneration: 2, Replicas: 2, UpdatedReplicas: 2, AvailableReplicas: 2},
			want:   true,
		},
		{
			name:   "stale generation",
			status: appsv1.DeploymentStatus{ObservedGeneration: 1, Replicas: 2, UpdatedReplicas: 2, AvailableReplicas: 2},
		},
		{
			name:   "old replica still running",
			status: appsv1.DeploymentStatus{ObservedGeneration: 2, Replicas: 3, UpdatedReplicas: 2, AvailableReplicas: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := &appsv1.Deployment{
				ObjectMeta: metav1.ObjectMeta{Name: "nfs", Namespace: "storage", Generation: 2},
				Spec:       appsv1.DeploymentSpec{Replicas: ptr.To[int32](2)},
				Status:     tt.status,
			}
			c := setupTestClient(t, d)

			got, err := c.RolloutComplete(context.Background(), Workload{Kind: KindDeployment, Namespace: "storage", Name: "nfs"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRolloutComplete_DaemonSet(t *testing.T) {
	t.Parallel()
	ds := &appsv1.DaemonSet{
		ObjectMeta: metav1.ObjectMeta{Name: "cilium", Namespace: "kube-system", Generation: 1},
		Status: appsv1.DaemonSetStatus{
			ObservedGeneration:     1,
			DesiredNumberScheduled: 3,
			UpdatedNumberScheduled: 3,
			NumberAvailable:        2,
		},
	}
	c := setupTestClient(t, ds)
	w := Workload{Kind: KindDaemonSet, Namespace: "kube-system", Name: "cilium"}

	got, err := c.RolloutComplete(context.Background(), w)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestRolloutComplete_MissingIsNotComplete(t *testing.T) {
	t.Parallel()
	c := setupTestClient(t)

	got, err := c.RolloutComplete(context.Background(), Workload{Kind: KindDeployment, Namespace: "x", Name: "y"})
	require.NoError(t, err)
	assert.False(t, got)

	_, err = c.RolloutComplete(context.Background(), Workload{Kind: "StatefulSet", Namespace: "x", Name: "y"})
	require.Error(t, err)
}

func TestWaitForRollout_Timeout(t *testing.T) {
	t.Parallel()
	c := setupTestClient(t)

	err := c.WaitForRollout(context.Background(),
		Workload{Kind: KindDaemonSet, Namespace: "kube-system", Name: "cilium"},
		5*time.Millisecond, 30*time.Millisecond)
	require.Error(t, err)
	require.ErrorIs(t, err, retry.ErrPollTimeout)
	assert.Contains(t, err.Error(), "DaemonSet kube-system/cilium")
}

func TestRunningPods(t *testing.T) {
	t.Parallel()
	ready := []corev1.PodCondition{{Type: corev1.PodReady, Status: corev1.ConditionTrue}}
	c := setupTestClient(t,
		pod("plugin-a", corev1.PodRunning, ready),
		pod("plugin-b", corev1.PodRunning, nil),
		pod("plugin-c", corev1.PodPending, ready),
	)

	n, err := c.RunningPods(context.Background(), "gpu", "app=plugin")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHasReadyEndpoints(t *testing.T) {
	t.Parallel()
	slice := &discoveryv1.EndpointSlice{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "webhook-abc",
			Namespace: "metallb-system",
			Labels:    map[string]string{discoveryv1.LabelServiceName: "metallb-webhook-service"},
		},
		Endpoints: []discoveryv1.Endpoint{
			{Addresses: []string{"10.0.0.4"}, Conditions: discoveryv1.EndpointConditions{Ready: ptr.To(false)}},
			{Addresses: []string{"10.0.0.5"}, Conditions: discoveryv1.EndpointConditions{Ready: ptr.To(true)}},
		},
	}
	c := setupTestClient(t, slice)

	ok, err := c.HasReadyEndpoints(context.Background(), "metallb-system", "metallb-webhook-service")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.HasReadyEndpoints(context.Background(), "metallb-system", "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func node(name string, labels map[string]string) *corev1.Node {
	return &corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: name, Labels: labels}}
}

func pod(name string, phase corev1.PodPhase, conds []corev1.PodCondition) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "gpu", Labels: map[string]string{"app": "plugin"}},
		Status:     corev1.PodStatus{Phase: phase, Conditions: conds},
	}
}
