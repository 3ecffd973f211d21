// Package tui renders the live delegation dashboard in the terminal. The
// model polls the run controller for snapshots; every mutation goes through
// a controller call, so the daemon's HTTP clients and the TUI always agree.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/inbox-orchestrator/internal/runner"
)

// Model is the bubbletea model for the dashboard
type Model struct {
	ctrl *runner.Controller
	snap runner.Snapshot

	// UI state
	width    int
	height   int
	selected int

	// Transient status line
	flash    string
	flashExp time.Time
}

// NewModel creates the dashboard model bound to a run controller
func NewModel(ctrl *runner.Controller) Model {
	return Model{
		ctrl: ctrl,
		snap: ctrl.Snapshot(),
	}
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd())
}

// SampleEnabled reports whether sample data was on at the last refresh,
// so the caller can persist a toggle made inside the dashboard
func (m Model) SampleEnabled() bool {
	return m.snap.SampleData
}

// TickMsg triggers a snapshot refresh
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
