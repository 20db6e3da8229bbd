package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/proxk8s/internal/reconcile"
)

// maxRecent bounds the list of recent problems shown below the phases.
const maxRecent = 5

// PhaseRow is one phase line of the display.
type PhaseRow struct {
	Name   string
	Done   bool
	Active bool
	Err    error
}

// Model is the Bubble Tea model of a running invocation.
type Model struct {
	ClusterName string
	Scope       string

	Phases []PhaseRow
	Counts map[reconcile.Status]int
	// Problems holds the latest warnings and failures, newest last.
	Problems []OutcomeMsg

	StartTime    time.Time
	SpinnerFrame int

	Width       int
	Err         error
	Done        bool
	Interrupted bool
}

// NewModel creates a model for the given phase names.
func NewModel(clusterName, scope string, phases []string) Model {
	m := Model{
		ClusterName: clusterName,
		Scope:       scope,
		Counts:      make(map[reconcile.Status]int),
		StartTime:   time.Now(),
	}
	for _, p := range phases {
		m.Phases = append(m.Phases, PhaseRow{Name: p})
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.Interrupted = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width

	case PhaseMsg:
		m.updatePhase(msg)

	case OutcomeMsg:
		m.Counts[msg.Status]++
		if msg.Status == reconcile.StatusWarning || msg.Status == reconcile.StatusFailed {
			m.Problems = append(m.Problems, msg)
			if len(m.Problems) > maxRecent {
				m.Problems = m.Problems[len(m.Problems)-maxRecent:]
			}
		}

	case TickMsg:
		m.SpinnerFrame++
		return m, tickCmd()

	case DoneMsg:
		m.Done = true
		m.Err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) updatePhase(msg PhaseMsg) {
	for i := range m.Phases {
		if m.Phases[i].Name != msg.Phase {
			continue
		}
		m.Phases[i].Active = !msg.Done
		m.Phases[i].Done = msg.Done && msg.Err == nil
		m.Phases[i].Err = msg.Err
		return
	}
}

// progress is the fraction of finished phases.
func (m Model) progress() float64 {
	if m.Done && m.Err == nil {
		return 1
	}
	if len(m.Phases) == 0 {
		return 0
	}
	done := 0
	for _, p := range m.Phases {
		if p.Done {
			done++
		}
	}
	return float64(done) / float64(len(m.Phases))
}

func tickCmd() tea.Cmd {
	return tea.Tick(150*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	return renderView(m)
}
