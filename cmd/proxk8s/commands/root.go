// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the proxk8s CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxk8s",
		Short: "Converge a kubeadm cluster on Proxmox VE and its GitOps applications",
		// Errors and exit codes are reported by main.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(Apply())
	cmd.AddCommand(GitOps())
	cmd.AddCommand(Init())
	cmd.AddCommand(Version())

	return cmd
}
