// Package tui renders run progress and the final summary in a terminal.
package tui

import "github.com/imamik/proxk8s/internal/reconcile"

// PhaseMsg reports that a phase started or finished.
type PhaseMsg struct {
	Phase string
	Done  bool
	Err   error
}

// OutcomeMsg reports one recorded resource outcome.
type OutcomeMsg struct {
	Phase    string
	Resource string
	Status   reconcile.Status
	Message  string
}

// TickMsg is sent periodically to refresh the display.
type TickMsg struct{}

// DoneMsg signals that the run has finished.
type DoneMsg struct{ Err error }
