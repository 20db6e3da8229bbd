package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/proxk8s/internal/provisioning"
	"github.com/imamik/proxk8s/internal/reconcile"
)

// sender is the part of tea.Program the observer needs.
type sender interface {
	Send(msg tea.Msg)
}

// Observer forwards phase and outcome events to a running program.
// Free-form log lines are dropped; they would tear the display.
type Observer struct {
	program sender
}

// NewObserver creates an observer sending to p.
func NewObserver(p sender) *Observer {
	return &Observer{program: p}
}

var outcomeStatus = map[provisioning.EventType]reconcile.Status{
	provisioning.EventResourceUnchanged: reconcile.StatusUnchanged,
	provisioning.EventResourceChanged:   reconcile.StatusChanged,
	provisioning.EventResourceSkipped:   reconcile.StatusSkipped,
	provisioning.EventResourceConflict:  reconcile.StatusConflict,
	provisioning.EventResourceWarning:   reconcile.StatusWarning,
	provisioning.EventResourceFailed:    reconcile.StatusFailed,
}

// Printf implements provisioning.Observer.
func (o *Observer) Printf(string, ...any) {}

// Progress implements provisioning.Observer.
func (o *Observer) Progress(string, int, int) {}

// WithFields implements provisioning.Observer.
func (o *Observer) WithFields(map[string]string) provisioning.Observer { return o }

// Event implements provisioning.Observer.
func (o *Observer) Event(e provisioning.Event) {
	switch e.Type {
	case provisioning.EventPhaseStarted:
		o.program.Send(PhaseMsg{Phase: e.Phase})
	case provisioning.EventPhaseCompleted:
		o.program.Send(PhaseMsg{Phase: e.Phase, Done: true})
	case provisioning.EventPhaseFailed:
		o.program.Send(PhaseMsg{Phase: e.Phase, Done: true, Err: errors.New(e.Message)})
	default:
		if status, ok := outcomeStatus[e.Type]; ok {
			o.program.Send(OutcomeMsg{Phase: e.Phase, Resource: e.Resource, Status: status, Message: e.Message})
		}
	}
}
