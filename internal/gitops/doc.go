// Package gitops reconciles the Argo CD Application objects that track
// the application repository.
//
// Applications are handled as unstructured objects so no Argo CD API
// module is needed. Every Application proxk8s creates carries the cluster
// label; labelled Applications that are no longer configured are deleted.
package gitops
