package naming

import (
	"fmt"
	"path"
)

// Naming functions for cluster objects and host files.
// Everything proxk8s creates is derived from the cluster name so that
// re-runs find the same objects.

// FieldManager is the server-side apply field manager for all writes.
const FieldManager = "proxk8s"

// ModulesLoadFile is the file that persists kernel modules across reboots.
func ModulesLoadFile(cluster string) string {
	return path.Join("/etc/modules-load.d", cluster+".conf")
}

// Application returns the Argo CD Application name for a GitOps entry.
func Application(cluster, app string) string {
	return fmt.Sprintf("%s-%s", cluster, app)
}

// AddressPool returns the MetalLB IPAddressPool name.
func AddressPool(cluster string) string {
	return fmt.Sprintf("%s-pool", cluster)
}

// RebootMarker is the host file recording that a reboot is pending.
func RebootMarker(cluster string) string {
	return fmt.Sprintf("/var/run/%s-reboot-required", cluster)
}

// AddonState is the ConfigMap recording which addon inputs were applied.
func AddonState(cluster string) string {
	return fmt.Sprintf("%s-addons", cluster)
}
