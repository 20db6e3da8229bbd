// Package orchestration runs the phases of one invocation in order.
//
// # Workflow
//
// Full executes, in order:
//  1. provisioning - installer ISO check, VM create/start, address readiness
//  2. os-prep - packages, kernel modules, GPU driver (gated)
//  3. control-plane - kubeadm init on the first control plane, joins
//  4. workers - worker joins, node labels
//  5. network - CNI and load-balancer charts
//  6. storage-gpu - NFS provisioner and NVIDIA device plugin (gated)
//  7. gitops-platform - Argo CD
//  8. gitops - repository key, deploy key, Applications
//
// GitOpsOnly executes the gitops phase alone against an existing cluster.
//
// A phase runs only if every earlier phase returned without a fatal error.
// Non-fatal failures are collected in the run report and turn exit code 0
// into 2.
//
// # Usage
//
//	r := orchestration.NewReconciler(cfg, gates, backends)
//	result := r.Full(ctx)
//	os.Exit(result.ExitCode())
package orchestration
