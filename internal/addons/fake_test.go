package addons

import (
	"context"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/runtime/schema"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/imamik/proxk8s/internal/addons/k8sclient"
)

// fakeCluster implements k8sclient.Client, recording every call.
type fakeCluster struct {
	mu         sync.Mutex
	ctrl       ctrlclient.Client
	applied    []string
	namespaces []string
	waited     []k8sclient.Workload
	rolledOut  bool
	endpoints  bool
	pods       int
	workers    int
	applyErr   error
	waitErr    error
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{ctrl: fake.NewClientBuilder().Build(), rolledOut: true, endpoints: true}
}

func (f *fakeCluster) ApplyManifests(_ context.Context, manifests []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, string(manifests))
	return nil
}

func (f *fakeCluster) EnsureNamespace(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.namespaces = append(f.namespaces, name)
	return nil
}

func (f *fakeCluster) RefreshDiscovery(context.Context) error    { return nil }
func (f *fakeCluster) HasResource(schema.GroupVersionKind) bool  { return true }
func (f *fakeCluster) CountWorkers(context.Context) (int, error) { return f.workers, nil }
func (f *fakeCluster) Controller() ctrlclient.Client             { return f.ctrl }
func (f *fakeCluster) RunningPods(context.Context, string, string) (int, error) {
	return f.pods, nil
}

func (f *fakeCluster) HasReadyEndpoints(context.Context, string, string) (bool, error) {
	return f.endpoints, nil
}

func (f *fakeCluster) RolloutComplete(context.Context, k8sclient.Workload) (bool, error) {
	return f.rolledOut, nil
}

func (f *fakeCluster) WaitForRollout(_ context.Context, w k8sclient.Workload, _, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waited = append(f.waited, w)
	return f.waitErr
}

func (f *fakeCluster) appliedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}
