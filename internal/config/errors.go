package config

import (
	"fmt"
	"strings"
)

// MissingConfigurationError lists every required key absent from the source.
type MissingConfigurationError struct {
	Keys []string
}

func (e *MissingConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Keys, ", "))
}

// InvalidConfigurationError lists every malformed or inconsistent value.
type InvalidConfigurationError struct {
	Problems []string
}

func (e *InvalidConfigurationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid configuration: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid configuration:\n  - %s", strings.Join(e.Problems, "\n  - "))
}
