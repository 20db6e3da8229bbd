package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/proxk8s/cmd/proxk8s/handlers"
)

// Init returns the command for interactively creating a .env file.
//
// Flags:
//
//	--output, -o: Path to output file (default ".env")
func Init() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a .env configuration",
		Long: `Interactively create a .env configuration file.

The wizard asks for the cluster name, the Proxmox endpoint, the node
inventory, the Kubernetes version, the optional subsystems and the GitOps
repository. Secrets are not written; set PROXMOX_TOKEN_SECRET and
GIT_PROVIDER_TOKEN in the environment.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", ".env", "Output file path")

	return cmd
}
