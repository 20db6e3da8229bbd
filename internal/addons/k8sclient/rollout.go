package k8sclient

import (
	"context"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/proxk8s/internal/util/retry"
)

// WorkloadKind is the kind of a rollout-tracked workload.
type WorkloadKind string

const (
	KindDeployment WorkloadKind = "Deployment"
	KindDaemonSet  WorkloadKind = "DaemonSet"
)

// Workload identifies a Deployment or DaemonSet.
type Workload struct {
	Kind      WorkloadKind
	Namespace string
	Name      string
}

func (w Workload) String() string {
	return fmt.Sprintf("%s %s/%s", w.Kind, w.Namespace, w.Name)
}

// RolloutComplete reports whether the workload's current generation is fully
// rolled out. A workload that does not exist yet is not complete.
func (c *client) RolloutComplete(ctx context.Context, w Workload) (bool, error) {
	switch w.Kind {
	case KindDeployment:
		d, err := c.clientset.AppsV1().Deployments(w.Namespace).Get(ctx, w.Name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return deploymentComplete(d), nil
	case KindDaemonSet:
		ds, err := c.clientset.AppsV1().DaemonSets(w.Namespace).Get(ctx, w.Name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return daemonSetComplete(ds), nil
	default:
		return false, fmt.Errorf("unsupported workload kind %q", w.Kind)
	}
}

func deploymentComplete(d *appsv1.Deployment) bool {
	want := int32(1)
	if d.Spec.Replicas != nil {
		want = *d.Spec.Replicas
	}
	s := d.Status
	return s.ObservedGeneration >= d.Generation &&
		s.UpdatedReplicas == want &&
		s.AvailableReplicas == want &&
		s.Replicas == want
}

func daemonSetComplete(ds *appsv1.DaemonSet) bool {
	s := ds.Status
	return s.ObservedGeneration >= ds.Generation &&
		s.DesiredNumberScheduled > 0 &&
		s.UpdatedNumberScheduled == s.DesiredNumberScheduled &&
		s.NumberAvailable == s.DesiredNumberScheduled
}

// WaitForRollout polls RolloutComplete until it holds or timeout passes.
// Transient API errors are retried until the deadline.
func (c *client) WaitForRollout(ctx context.Context, w Workload, interval, timeout time.Duration) error {
	err := retry.Poll(ctx, interval, timeout, func(ctx context.Context) (bool, error) {
		done, err := c.RolloutComplete(ctx, w)
		if err != nil {
			return false, nil
		}
		return done, nil
	})
	if err != nil {
		return fmt.Errorf("%s did not finish rolling out: %w", w, err)
	}
	return nil
}

// RunningPods counts Ready pods matching selector in namespace.
func (c *client) RunningPods(ctx context.Context, namespace, selector string) (int, error) {
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return 0, fmt.Errorf("failed to list pods %s in %s: %w", selector, namespace, err)
	}
	n := 0
	for _, p := range pods.Items {
		if p.Status.Phase != corev1.PodRunning {
			continue
		}
		for _, cond := range p.Status.Conditions {
			if cond.Type == corev1.PodReady && cond.Status == corev1.ConditionTrue {
				n++
				break
			}
		}
	}
	return n, nil
}

// HasReadyEndpoints checks if a service has at least one ready endpoint.
func (c *client) HasReadyEndpoints(ctx context.Context, namespace, serviceName string) (bool, error) {
	slices, err := c.clientset.DiscoveryV1().EndpointSlices(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: discoveryv1.LabelServiceName + "=" + serviceName,
	})
	if err != nil {
		return false, fmt.Errorf("failed to list endpoints of %s/%s: %w", namespace, serviceName, err)
	}
	for _, s := range slices.Items {
		for _, ep := range s.Endpoints {
			if ep.Conditions.Ready != nil && *ep.Conditions.Ready {
				return true, nil
			}
		}
	}
	return false, nil
}
