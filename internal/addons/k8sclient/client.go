package k8sclient

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
)

// Client provides Kubernetes operations for addon installation.
type Client interface {
	// ApplyManifests applies multi-document YAML using Server-Side Apply.
	// The fieldManager identifies the actor applying the configuration.
	ApplyManifests(ctx context.Context, manifests []byte, fieldManager string) error

	// EnsureNamespace creates the namespace if it does not exist.
	EnsureNamespace(ctx context.Context, name string) error

	// RefreshDiscovery refreshes the API discovery to pick up newly installed CRDs.
	// This should be called after installing a Helm chart that includes CRDs.
	RefreshDiscovery(ctx context.Context) error

	// HasResource reports whether the API server serves the given kind.
	HasResource(gvk schema.GroupVersionKind) bool

	// HasReadyEndpoints checks if a service has at least one ready endpoint.
	HasReadyEndpoints(ctx context.Context, namespace, serviceName string) (bool, error)

	// RolloutComplete reports whether a Deployment or DaemonSet has all
	// replicas of its current generation updated and available.
	RolloutComplete(ctx context.Context, w Workload) (bool, error)

	// WaitForRollout polls RolloutComplete until it holds or timeout passes.
	WaitForRollout(ctx context.Context, w Workload, interval, timeout time.Duration) error

	// RunningPods counts Ready pods matching selector in namespace.
	RunningPods(ctx context.Context, namespace, selector string) (int, error)

	// CountWorkers returns the number of registered nodes without the
	// control-plane role label.
	CountWorkers(ctx context.Context) (int, error)

	// Controller returns a controller-runtime client sharing the same
	// connection, for create-or-update of typed objects.
	Controller() ctrlclient.Client
}

// client implements the Client interface using k8s.io/client-go.
type client struct {
	clientset     kubernetes.Interface
	dynamicClient dynamic.Interface
	ctrl          ctrlclient.Client
	mapper        meta.RESTMapper
	restConfig    *rest.Config
}

// NewFromKubeconfig creates a Client from kubeconfig bytes.
// This avoids the need to write kubeconfig to a temporary file.
func NewFromKubeconfig(kubeconfig []byte) (Client, error) {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create REST config from kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	mapper, err := discoverMapper(restConfig)
	if err != nil {
		return nil, err
	}

	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("failed to build scheme: %w", err)
	}
	ctrl, err := ctrlclient.New(restConfig, ctrlclient.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create controller-runtime client: %w", err)
	}

	return &client{
		clientset:     clientset,
		dynamicClient: dynamicClient,
		ctrl:          ctrl,
		mapper:        mapper,
		restConfig:    restConfig,
	}, nil
}

// NewFromClients creates a Client from pre-configured clients.
// This is useful for testing with fake clients.
func NewFromClients(
	clientset kubernetes.Interface,
	dynamicClient dynamic.Interface,
	ctrl ctrlclient.Client,
	mapper meta.RESTMapper,
) Client {
	return &client{
		clientset:     clientset,
		dynamicClient: dynamicClient,
		ctrl:          ctrl,
		mapper:        mapper,
	}
}

func (c *client) Controller() ctrlclient.Client {
	return c.ctrl
}

// RefreshDiscovery refreshes the API discovery to pick up newly installed CRDs.
func (c *client) RefreshDiscovery(_ context.Context) error {
	if c.restConfig == nil {
		// Test clients keep their static mapper.
		return nil
	}
	mapper, err := discoverMapper(c.restConfig)
	if err != nil {
		return err
	}
	c.mapper = mapper
	return nil
}

// HasResource reports whether the mapper knows gvk.
func (c *client) HasResource(gvk schema.GroupVersionKind) bool {
	_, err := c.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	return err == nil
}

func discoverMapper(restConfig *rest.Config) (meta.RESTMapper, error) {
	discoveryClient, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}

	groupResources, err := restmapper.GetAPIGroupResources(discoveryClient)
	if err != nil {
		// Partial discovery errors are common while aggregated APIs start.
		if !discovery.IsGroupDiscoveryFailedError(err) {
			return nil, fmt.Errorf("failed to get API group resources: %w", err)
		}
	}
	return restmapper.NewDiscoveryRESTMapper(groupResources), nil
}
