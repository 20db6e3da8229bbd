// Package naming provides consistent names for cluster objects and host files.
//
// Names are derived from the cluster name alone so that every run converges
// on the same objects instead of creating new ones.
package naming
