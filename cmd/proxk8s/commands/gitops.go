package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/proxk8s/cmd/proxk8s/handlers"
)

// GitOps returns the command converging only the GitOps resources.
func GitOps() *cobra.Command {
	var opts handlers.RunOptions

	cmd := &cobra.Command{
		Use:   "gitops",
		Short: "Reconcile the repository key and Argo CD Applications only",
		Long: `Reconcile the GitOps resources of an existing cluster.

Only the cluster, GitOps and artifact settings are read; hypervisor and
host settings may be absent. The cluster is reached through the
kubeconfig at KUBECONFIG_PATH.`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return finishRunFlags(cmd, &opts)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.GitOps(cmd.Context(), opts)
		},
	}

	bindRunFlags(cmd, &opts)
	return cmd
}
