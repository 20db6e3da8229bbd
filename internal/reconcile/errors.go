package reconcile

import (
	"errors"
	"fmt"
)

// ErrResourceConflict signals that a create found the resource already
// present. It counts as success.
var ErrResourceConflict = errors.New("resource already exists")

// ErrIrreversibleActionSkipped signals that a one-way transition was not
// taken because its precondition already held. It is informational.
var ErrIrreversibleActionSkipped = errors.New("irreversible action skipped")

// BackendUnreachableError reports a backend that did not answer after
// bounded retries.
type BackendUnreachableError struct {
	Backend string
	Err     error
}

func (e *BackendUnreachableError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Backend, e.Err)
}

func (e *BackendUnreachableError) Unwrap() error { return e.Err }

// Unreachable wraps err as a BackendUnreachableError for backend.
func Unreachable(backend string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendUnreachableError{Backend: backend, Err: err}
}

// IsBackendUnreachable reports whether err wraps a BackendUnreachableError.
func IsBackendUnreachable(err error) bool {
	var target *BackendUnreachableError
	return errors.As(err, &target)
}

// OptionalSubsystemFailure isolates a failure inside an optional subsystem
// from the rest of the run.
type OptionalSubsystemFailure struct {
	Subsystem string
	Err       error
}

func (e *OptionalSubsystemFailure) Error() string {
	return fmt.Sprintf("optional subsystem %s failed: %v", e.Subsystem, e.Err)
}

func (e *OptionalSubsystemFailure) Unwrap() error { return e.Err }

// IsOptionalSubsystemFailure reports whether err wraps an OptionalSubsystemFailure.
func IsOptionalSubsystemFailure(err error) bool {
	var target *OptionalSubsystemFailure
	return errors.As(err, &target)
}

// ResourceError carries the context of a failed action.
type ResourceError struct {
	Kind     string
	Target   string
	Name     string
	Desired  string
	Observed string
	Err      error
}

func (e *ResourceError) Error() string {
	id := e.Target
	if e.Name != "" && e.Name != e.Target {
		id = e.Target + "/" + e.Name
	}
	msg := fmt.Sprintf("%s %s: %v", e.Kind, id, e.Err)
	if e.Desired != "" || e.Observed != "" {
		msg += fmt.Sprintf(" (desired=%q observed=%q)", e.Desired, e.Observed)
	}
	return msg
}

func (e *ResourceError) Unwrap() error { return e.Err }

// WarningError marks a failure that is reported but does not fail its
// target or block later actions on it.
type WarningError struct {
	Err error
}

func (e *WarningError) Error() string { return e.Err.Error() }

func (e *WarningError) Unwrap() error { return e.Err }

// Warning wraps err as a WarningError.
func Warning(err error) error {
	if err == nil {
		return nil
	}
	return &WarningError{Err: err}
}

// FatalErrors returns err without the OptionalSubsystemFailures it joins,
// or nil when nothing else remains.
func FatalErrors(err error) error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var keep []error
		for _, e := range joined.Unwrap() {
			if f := FatalErrors(e); f != nil {
				keep = append(keep, f)
			}
		}
		return errors.Join(keep...)
	}
	if IsOptionalSubsystemFailure(err) {
		return nil
	}
	return err
}
