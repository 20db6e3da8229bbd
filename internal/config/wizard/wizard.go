package wizard

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/imamik/proxk8s/internal/config"
)

// Result holds all the answers from the interactive wizard.
type Result struct {
	// Cluster identity
	ClusterName string

	// Hypervisor
	ProxmoxHost    string
	ProxmoxNode    string
	ProxmoxTokenID string
	ProxmoxStorage string
	ProxmoxBridge  string
	ISOImage       string

	// Inventory
	ControlPlanes string
	Workers       string

	// Versions
	KubernetesVersion string

	// Optional subsystems
	EnableStorage bool
	EnableGPU     bool

	// GitOps
	RepoURL      string
	Applications string
}

var clusterNamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,30}[a-z0-9])?$`)

// RunWizard runs the interactive configuration wizard.
// The context is used for cancellation support (e.g., Ctrl+C).
func RunWizard(ctx context.Context) (*Result, error) {
	result := &Result{
		ProxmoxStorage:    "local-lvm",
		ProxmoxBridge:     "vmbr0",
		KubernetesVersion: "1.31.2",
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cluster name").
				Description("Used for labels and the modules-load file on every node").
				Placeholder("lab").
				Value(&result.ClusterName).
				Validate(validateClusterName),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Proxmox API host").
				Placeholder("pve.example.com:8006").
				Value(&result.ProxmoxHost).
				Validate(required),
			huh.NewInput().
				Title("Proxmox node").
				Placeholder("pve1").
				Value(&result.ProxmoxNode).
				Validate(required),
			huh.NewInput().
				Title("API token ID").
				Description("The secret is not asked for; set PROXMOX_TOKEN_SECRET in the environment").
				Placeholder("root@pam!proxk8s").
				Value(&result.ProxmoxTokenID).
				Validate(required),
			huh.NewInput().
				Title("VM disk storage").
				Value(&result.ProxmoxStorage).
				Validate(required),
			huh.NewInput().
				Title("Network bridge").
				Value(&result.ProxmoxBridge).
				Validate(required),
			huh.NewInput().
				Title("Installer ISO").
				Placeholder("ubuntu-24.04-autoinstall.iso").
				Value(&result.ISOImage).
				Validate(required),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Control plane nodes").
				Placeholder("cp-1=10.0.0.11").
				Value(&result.ControlPlanes).
				Validate(validateInventory(false)),
			huh.NewInput().
				Title("Worker nodes").
				Placeholder("worker-1=10.0.0.21,worker-2=10.0.0.22").
				Value(&result.Workers).
				Validate(validateInventory(true)),
			huh.NewInput().
				Title("Kubernetes version").
				Value(&result.KubernetesVersion).
				Validate(required),
		),

		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable NFS dynamic storage?").
				Value(&result.EnableStorage),
			huh.NewConfirm().
				Title("Enable GPU passthrough?").
				Value(&result.EnableGPU),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("GitOps repository").
				Placeholder("git@gitlab.com:team/apps.git").
				Value(&result.RepoURL).
				Validate(validateRepoURL),
			huh.NewInput().
				Title("Applications").
				Placeholder("apps=apps/base").
				Value(&result.Applications).
				Validate(validateApplications),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("wizard canceled: %w", err)
	}

	return result, nil
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errValueRequired
	}
	return nil
}

func validateClusterName(s string) error {
	if s == "" {
		return errClusterNameRequired
	}
	if !clusterNamePattern.MatchString(s) {
		return errClusterNameInvalid
	}
	return nil
}

func validateInventory(allowEmpty bool) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			if allowEmpty {
				return nil
			}
			return errValueRequired
		}
		if _, err := config.ParseNodes(s); err != nil {
			return fmt.Errorf("%w: %v", errInventoryInvalid, err)
		}
		return nil
	}
}

func validateApplications(s string) error {
	if strings.TrimSpace(s) == "" {
		return errValueRequired
	}
	if _, err := config.ParseApplications(s); err != nil {
		return fmt.Errorf("%w: %v", errApplicationsInvalid, err)
	}
	return nil
}

func validateRepoURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errValueRequired
	}
	if strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "ssh://") {
		return nil
	}
	if at := strings.Index(s, "@"); at > 0 && strings.Contains(s[at:], ":") {
		return nil
	}
	return errRepoURLInvalid
}
