// Package ssh provides SSH client utilities for executing commands on cluster
// hosts. It handles connection establishment with retry logic, key-based
// authentication, and command execution with context support.
//
// Every command and its combined output can be mirrored to a transcript
// writer, which the run uses to keep per-host command logs as artifacts.
//
// Security: Host key verification is disabled by default; the hosts are
// freshly installed VMs whose keys are unknown before first contact.
// Configure HostKeyCallback to pin keys.
package ssh
