package wizard

import "errors"

// Validation errors for the interactive wizard.
var (
	errClusterNameRequired = errors.New("cluster name is required")
	errClusterNameInvalid  = errors.New("cluster name must be 1-32 lowercase alphanumeric characters or hyphens, starting and ending with alphanumeric")
	errValueRequired       = errors.New("a value is required")
	errInventoryInvalid    = errors.New("expected name=ip entries separated by commas")
	errApplicationsInvalid = errors.New("expected name=path entries separated by commas")
	errRepoURLInvalid      = errors.New("expected an ssh or https repository URL")
)
