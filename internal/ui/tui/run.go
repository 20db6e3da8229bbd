package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/proxk8s/internal/provisioning"
)

// Run shows m while fn executes. fn receives an observer feeding the
// display and a context that is cancelled when the user interrupts.
func Run(ctx context.Context, m Model, fn func(ctx context.Context, observer provisioning.Observer) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(m, tea.WithContext(ctx))
	done := make(chan error, 1)
	go func() {
		err := fn(ctx, NewObserver(p))
		done <- err
		p.Send(DoneMsg{Err: err})
	}()

	final, err := p.Run()
	if fm, ok := final.(Model); ok && fm.Interrupted {
		cancel()
	}
	runErr := <-done
	if err != nil && runErr == nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return runErr
}
