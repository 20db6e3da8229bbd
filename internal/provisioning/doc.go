// Package provisioning provides the shared context, observability and
// phase runner for a proxk8s run.
//
// # Subpackages
//
//   - compute/: Proxmox VMs (installer ISO, create, start, guest address)
//   - osprep/: host packages, kernel modules, GPU driver
//   - cluster/: kubeadm control plane and worker joins
//
// # Core Types
//
// Context carries configuration, feature gates, state, backends, the run
// report and the observer. Phase defines a step with Name() and
// Provision(). Every phase builds reconcile plans and applies them through
// Context.Execute, which records outcomes, emits events and updates metrics.
package provisioning
