package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/proxk8s/cmd/proxk8s/handlers"
)

// Apply returns the command converging the whole stack.
//
// Optional flags:
//
//	--env-file, -e: Path to the .env file (default: .env, optional unless set)
//	--log-format:   text or json
//	--no-tui:       disable the interactive progress view
func Apply() *cobra.Command {
	var opts handlers.RunOptions

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or update the cluster",
		Long: `Create or update the cluster and everything on it.

Phases run in order and each one only runs if the previous one did not
fail fatally:

  provisioning     VMs on Proxmox VE, installer ISO check, address readiness
  os-prep          packages, kernel modules, GPU driver (when enabled)
  control-plane    kubeadm init and control-plane joins
  workers          worker joins and node labels
  network          CNI and load balancer
  storage-gpu      NFS provisioner and NVIDIA device plugin (when enabled)
  gitops-platform  Argo CD
  gitops           repository key, deploy key and Applications

Configuration is read from the environment and the .env file. Run
'proxk8s init' to create one.

Exit codes: 0 converged, 1 fatal error, 2 completed with non-fatal failures.

Examples:
  proxk8s apply
  proxk8s apply -e lab.env --log-format json`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return finishRunFlags(cmd, &opts)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), opts)
		},
	}

	bindRunFlags(cmd, &opts)
	return cmd
}
