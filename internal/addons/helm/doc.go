// Package helm renders Helm charts into Kubernetes manifests.
//
// Charts are never installed as Helm releases. They are downloaded from
// their repositories, cached locally, rendered in-process with the Helm
// engine and handed to the Kubernetes client for Server-Side Apply.
// The package also holds value builders shared by several addons.
package helm
