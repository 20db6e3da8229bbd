// Package k8sclient provides the Kubernetes access used by cluster addons:
// Server-Side Apply of multi-document YAML, rollout and pod readiness
// checks, live node counts, and a controller-runtime client for
// create-or-update of typed objects. Everything is built directly from
// kubeconfig bytes.
package k8sclient
