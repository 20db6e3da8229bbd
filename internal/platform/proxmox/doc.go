// Package proxmox adapts the go-proxmox API client to what cluster
// provisioning needs: VM listing, creation, start and configuration, task
// waits, storage content and guest-agent network interfaces.
//
// Authentication uses an API token ("user@realm!name" plus secret). Non-2xx
// answers surface as *APIError.
package proxmox
