package k8sclient

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ControlPlaneRoleLabel is set by kubeadm on control-plane nodes.
const ControlPlaneRoleLabel = "node-role.kubernetes.io/control-plane"

// CountWorkers returns the number of registered nodes without the
// control-plane role label, read live from the API server.
func (c *client) CountWorkers(ctx context.Context) (int, error) {
	nodes, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to list nodes: %w", err)
	}

	n := 0
	for _, node := range nodes.Items {
		if _, isControlPlane := node.Labels[ControlPlaneRoleLabel]; isControlPlane {
			continue
		}
		n++
	}
	return n, nil
}
