package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/inbox-orchestrator/internal/domain"
	"github.com/hochfrequenz/inbox-orchestrator/internal/runner"
)

// RetryResultMsg is sent when a notification retry finishes
type RetryResultMsg struct {
	Index int
	Err   error
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			if m.ctrl.StartRun(context.Background()) {
				m.setFlash("Delegation run started")
			} else {
				m.setFlash("A delegation run is already active")
			}
			m.snap = m.ctrl.Snapshot()
		case "s":
			m.ctrl.SetSampleData(!m.snap.SampleData)
			m.snap = m.ctrl.Snapshot()
		case "j", "down":
			if m.selected < len(m.snap.Items)-1 {
				m.selected++
			}
		case "k", "up":
			if m.selected > 0 {
				m.selected--
			}
		case "enter":
			if len(m.snap.Items) == 0 {
				break
			}
			if m.snap.ExpandedIndex == m.selected {
				m.ctrl.SetExpandedItem(-1)
			} else {
				m.ctrl.SetExpandedItem(m.selected)
			}
			m.snap = m.ctrl.Snapshot()
		case "y":
			if m.snap.Running || m.selected >= len(m.snap.Items) {
				break
			}
			item := m.snap.Items[m.selected]
			if item.NotificationStatus != domain.NotificationFailed {
				m.setFlash("Notification already delivered")
				break
			}
			m.setFlash(fmt.Sprintf("Resending notification to %s...", item.Assignee))
			return m, retryNotification(m.ctrl, m.selected)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		m.snap = m.ctrl.Snapshot()
		m.clampSelection()
		return m, tickCmd()

	case RetryResultMsg:
		// A failed retry leaves the item red; the flip that never
		// happens is all the feedback the dashboard gives.
		m.snap = m.ctrl.Snapshot()
		if msg.Err == nil {
			m.setFlash("Notification delivered")
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) setFlash(msg string) {
	m.flash = msg
	m.flashExp = time.Now().Add(3 * time.Second)
}

// clampSelection keeps the cursor on a real row when a new run replaces
// the item list with a shorter one
func (m *Model) clampSelection() {
	if m.selected >= len(m.snap.Items) {
		m.selected = len(m.snap.Items) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// retryNotification asks the agent platform to resend one teammate
// notification. The call blocks on the remote platform, so it runs as a
// command instead of inside Update.
func retryNotification(ctrl *runner.Controller, index int) tea.Cmd {
	return func() tea.Msg {
		err := ctrl.RetryNotification(context.Background(), index)
		return RetryResultMsg{Index: index, Err: err}
	}
}
