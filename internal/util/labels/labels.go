package labels

import "strings"

// Standard label keys for objects managed by proxk8s.
const (
	// KeyCluster identifies which cluster an object belongs to
	KeyCluster = "proxk8s.io/cluster"

	// KeyRole identifies the role of a node (control-plane, worker)
	KeyRole = "proxk8s.io/role"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "proxk8s.io/managed-by"

	// KeyAccelerator marks nodes with a passed-through accelerator
	KeyAccelerator = "proxk8s.io/accelerator"
)

// Role values
const (
	RoleControlPlane = "control-plane"
	RoleWorker       = "worker"
)

// ManagedBy values
const (
	ManagedByProxk8s = "proxk8s"
)

// AcceleratorNVIDIA is the KeyAccelerator value for NVIDIA GPU nodes.
const AcceleratorNVIDIA = "nvidia"

// DefaultProtectedPrefixes are label domains owned by other actors.
// A key is protected when its domain equals one of these or is a subdomain
// of one (node-role.kubernetes.io matches kubernetes.io).
var DefaultProtectedPrefixes = []string{
	"kubernetes.io",
	"k8s.io",
	"nvidia.com",
	"feature.node.kubernetes.io",
}

// LabelBuilder provides a fluent interface for building label sets.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the cluster name pre-set.
func NewLabelBuilder(clusterName string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyCluster:   clusterName,
			KeyManagedBy: ManagedByProxk8s,
		},
	}
}

// WithRole adds a role label (e.g., "control-plane", "worker").
func (lb *LabelBuilder) WithRole(role string) *LabelBuilder {
	lb.labels[KeyRole] = role
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// SelectorForCluster returns a label selector string for all objects in a cluster.
func SelectorForCluster(clusterName string) string {
	return KeyCluster + "=" + clusterName
}

// Domain returns the prefix part of a qualified label key, or "" when the
// key has no prefix.
func Domain(key string) string {
	domain, _, found := strings.Cut(key, "/")
	if !found {
		return ""
	}
	return domain
}

// IsProtected reports whether key falls under one of the protected prefixes.
// Entries containing a slash are matched as literal key prefixes; bare
// domains match the key's domain and all of its subdomains.
func IsProtected(key string, prefixes []string) bool {
	domain := Domain(key)
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Contains(p, "/") {
			if strings.HasPrefix(key, p) {
				return true
			}
			continue
		}
		if domain == "" {
			continue
		}
		if domain == p || strings.HasSuffix(domain, "."+p) {
			return true
		}
	}
	return false
}

// ProtectedPrefixes returns the default protected prefixes followed by extra.
func ProtectedPrefixes(extra []string) []string {
	out := make([]string, 0, len(DefaultProtectedPrefixes)+len(extra))
	out = append(out, DefaultProtectedPrefixes...)
	for _, p := range extra {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
