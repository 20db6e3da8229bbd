package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/imamik/proxk8s/internal/config/wizard"
)

// Factory function variables for init - can be replaced in tests.
var (
	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	runWizard    = wizard.RunWizard
	writeEnvFile = wizard.WriteEnvFile
)

// Init runs the configuration wizard and writes the result as a .env file.
func Init(ctx context.Context, outputPath string) error {
	if fileExists(outputPath) {
		fmt.Printf("Warning: %s already exists and will be overwritten.\n\n", outputPath)
	}

	printWelcome()

	result, err := runWizard(ctx)
	if err != nil {
		return fmt.Errorf("wizard canceled: %w", err)
	}

	if err := writeEnvFile(wizard.BuildSource(result), outputPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printInitSuccess(outputPath, result)
	return nil
}

func printWelcome() {
	fmt.Println()
	fmt.Println("proxk8s - kubeadm on Proxmox VE")
	fmt.Println("===============================")
	fmt.Println()
	fmt.Println("This wizard writes a .env file with the required settings.")
	fmt.Println("Placeholders are left for values it does not ask about.")
	fmt.Println()
}

func printInitSuccess(outputPath string, r *wizard.Result) {
	fmt.Println()
	fmt.Println("Configuration saved!")
	fmt.Println()
	fmt.Printf("  File: %s\n", outputPath)
	fmt.Println()
	fmt.Println("Cluster Summary")
	fmt.Println("---------------")
	fmt.Printf("  Name:           %s\n", r.ClusterName)
	fmt.Printf("  Proxmox:        %s (node %s)\n", r.ProxmoxHost, r.ProxmoxNode)
	fmt.Printf("  Control planes: %s\n", r.ControlPlanes)
	fmt.Printf("  Workers:        %s\n", r.Workers)
	fmt.Printf("  Kubernetes:     %s\n", r.KubernetesVersion)
	fmt.Printf("  Storage:        %t\n", r.EnableStorage)
	fmt.Printf("  GPU:            %t\n", r.EnableGPU)
	fmt.Printf("  Repository:     %s\n", r.RepoURL)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. export PROXMOX_TOKEN_SECRET=... GIT_PROVIDER_TOKEN=...")
	fmt.Printf("  2. proxk8s apply -e %s\n", outputPath)
}
