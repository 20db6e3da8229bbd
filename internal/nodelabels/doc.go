// Package nodelabels keeps the labels proxk8s owns on each Kubernetes node
// in sync with the declared set.
//
// Labels under protected prefixes (kubernetes.io, nvidia.com and the like)
// belong to other actors and are never added, changed or removed. Every
// other label on a node is owned by proxk8s: missing or differing ones are
// added, undeclared ones are removed, and all of it lands in one update per
// node. A node whose labels already match is not written at all.
package nodelabels
