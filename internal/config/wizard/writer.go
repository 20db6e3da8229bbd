package wizard

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const header = `# proxk8s cluster configuration
# Secrets (PROXMOX_TOKEN_SECRET, GIT_PROVIDER_TOKEN) belong in the
# environment, not in this file.
`

// WriteEnvFile writes the source as a .env file readable by config.Source.
func WriteEnvFile(source map[string]string, path string) error {
	body, err := godotenv.Marshal(source)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString(body)
	sb.WriteString("\n")

	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
