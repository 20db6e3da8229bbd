// Package hostprep converges the operating system state every cluster node
// needs before kubeadm runs: packages present, kernel modules loaded and
// persisted, and the kernel parameters Kubernetes networking expects.
//
// Packages are only ever installed, never upgraded or removed. Files are
// rewritten only when their content differs.
package hostprep
