// Package driver installs the accelerator driver on GPU nodes.
//
// The version is chosen once, at initial install, by [Select]. A node that
// already has any driver package installed is never re-evaluated and never
// upgraded, and the host is rebooted only on the run that installed.
package driver
