// Package compute provisions the cluster VMs on Proxmox VE.
//
// Every inventory node gets one VM named after it. Existing VMs are left in
// place and only started when stopped; new VMs boot from the installer ISO
// with the guest agent enabled. The phase ends once every guest agent reports
// the inventory address and SSH answers on it.
package compute
