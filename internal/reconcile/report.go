package reconcile

import (
	"errors"
	"sync"
	"time"
)

// Status is the result of one action.
type Status string

const (
	StatusUnchanged Status = "unchanged"
	StatusChanged   Status = "changed"
	StatusSkipped   Status = "skipped"
	StatusConflict  Status = "conflict"
	StatusWarning   Status = "warning"
	StatusFailed    Status = "failed"
)

// Outcome records what happened to one resource during a run.
type Outcome struct {
	Phase     string        `yaml:"phase"`
	Kind      string        `yaml:"kind"`
	Target    string        `yaml:"target"`
	Name      string        `yaml:"name,omitempty"`
	Action    ActionType    `yaml:"action"`
	Status    Status        `yaml:"status"`
	Subsystem string        `yaml:"subsystem,omitempty"`
	Message   string        `yaml:"message,omitempty"`
	Duration  time.Duration `yaml:"duration,omitempty"`
	Err       error         `yaml:"-"`
}

// Succeeded reports whether the outcome counts toward convergence.
func (o Outcome) Succeeded() bool {
	switch o.Status {
	case StatusFailed, StatusWarning:
		return false
	default:
		return true
	}
}

// Report accumulates outcomes from every phase. It is safe for concurrent use.
type Report struct {
	mu       sync.Mutex
	outcomes []Outcome
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{}
}

// Record appends an outcome.
func (r *Report) Record(o Outcome) {
	if o.Err != nil && o.Message == "" {
		o.Message = o.Err.Error()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

// Outcomes returns a copy of all outcomes in record order.
func (r *Report) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// Count returns how many outcomes have the given status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, o := range r.Outcomes() {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Failures returns the outcomes that did not succeed.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes() {
		if !o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}

// Converged reports whether every recorded outcome succeeded.
func (r *Report) Converged() bool {
	return len(r.Failures()) == 0
}

// Err joins the errors of all failed outcomes, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Failures() {
		if o.Err != nil {
			errs = append(errs, o.Err)
		} else {
			errs = append(errs, errors.New(o.Message))
		}
	}
	return errors.Join(errs...)
}
