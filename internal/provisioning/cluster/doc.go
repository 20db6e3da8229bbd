// Package cluster bootstraps Kubernetes with kubeadm.
//
// The control-plane phase initialises the first control-plane node when it
// has no admin.conf yet, fetches the admin kubeconfig and joins the other
// control planes one at a time. The workers phase joins absent workers and
// reconciles the labels proxk8s owns on every node. A node counts as joined
// once /etc/kubernetes/kubelet.conf exists.
package cluster
