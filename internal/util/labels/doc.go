// Package labels provides consistent labeling for cluster-managed objects.
//
// Labels written by proxk8s use the proxk8s.io domain prefix and follow a
// builder pattern for constructing label sets with cluster name, role, and
// manager identification. The package also decides which label keys belong
// to other actors (the kubelet, device plugins, node feature discovery) and
// must never be touched.
package labels
