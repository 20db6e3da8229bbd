package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imamik/proxk8s/cmd/proxk8s/handlers"
)

// bindRunFlags adds the flags shared by apply and gitops.
func bindRunFlags(cmd *cobra.Command, opts *handlers.RunOptions) {
	cmd.Flags().StringVarP(&opts.EnvFile, "env-file", "e", ".env", "Path to the .env configuration file")
	cmd.Flags().StringVar(&opts.LogFormat, "log-format", handlers.LogFormatText, "Log format: text or json")
	cmd.Flags().BoolVar(&opts.NoTUI, "no-tui", false, "Print log lines instead of the interactive progress view")
}

// finishRunFlags validates the shared flags once they are parsed.
func finishRunFlags(cmd *cobra.Command, opts *handlers.RunOptions) error {
	opts.EnvFileRequired = cmd.Flags().Changed("env-file")
	switch opts.LogFormat {
	case handlers.LogFormatText, handlers.LogFormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid --log-format %q: must be text or json", opts.LogFormat)
	}
}
