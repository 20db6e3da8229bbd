// Package main is the entry point for the proxk8s CLI.
//
// proxk8s converges a kubeadm cluster on Proxmox VE from virtual machines
// up to the Argo CD Applications that track a Git repository. Every run
// is idempotent: re-running with unchanged configuration changes nothing.
//
// Commands: apply, gitops, init, version.
//
// Exit codes: 0 converged, 1 fatal error, 2 completed with non-fatal
// failures.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/proxk8s/cmd/proxk8s/commands"
	"github.com/imamik/proxk8s/cmd/proxk8s/handlers"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	commands.SetVersionInfo(version, commit, date)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *handlers.ExitError
	if errors.As(err, &exit) {
		if exit.Err != nil {
			fmt.Fprintln(os.Stderr, "Error:", exit.Err)
		}
		return exit.Code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}
