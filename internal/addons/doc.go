// Package addons installs the in-cluster components proxk8s depends on.
//
// Every addon is a [Chart]: a pinned Helm chart, its values, the
// workloads whose rollout proves it is healthy, and optional follow-up
// manifests for resources served by the chart's CRDs. The [Installer]
// turns a list of charts into a reconcile plan. A digest of each chart's
// inputs is recorded in a ConfigMap after a successful install, so a
// chart whose inputs are unchanged and whose workloads are rolled out is
// left alone on the next run.
//
// Install order inside a phase:
//   - network: Cilium, then MetalLB and its address pool
//   - storage: NFS subdir provisioner
//   - gpu: NVIDIA device plugin, then a wait for its pods
//   - gitops-platform: Argo CD
package addons
