package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/hochfrequenz/inbox-orchestrator/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255")).
		Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	runningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	completedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	failedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	warningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214"))

	idleStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	dimmedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255"))

	phaseActiveStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Underline(true)

	phaseInactiveStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))
)

// View renders the dashboard
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	// Header
	agent := m.snap.ActiveAgent
	if agent == "" {
		agent = "none"
	}
	sample := "off"
	if m.snap.SampleData {
		sample = "on"
	}
	header := fmt.Sprintf(" Inbox Orchestrator │ Agent: %s │ Runs recorded: %d │ Sample data: %s ",
		agent, len(m.snap.History), sample)
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	// Phase strip
	b.WriteString(m.renderPhases())
	b.WriteString("\n")

	runSection := m.renderRun()
	b.WriteString(sectionStyle.Width(m.width - 2).Render(runSection))
	b.WriteString("\n")

	statsSection := m.renderStats()
	b.WriteString(sectionStyle.Width(m.width - 2).Render(statsSection))
	b.WriteString("\n")

	itemsSection := m.renderItems()
	b.WriteString(sectionStyle.Width(m.width - 2).Render(itemsSection))
	b.WriteString("\n")

	if len(m.snap.History) > 0 {
		historySection := m.renderHistory()
		b.WriteString(sectionStyle.Width(m.width - 2).Render(historySection))
		b.WriteString("\n")
	}

	// Flash message (run trigger / retry feedback)
	if m.flash != "" && time.Now().Before(m.flashExp) {
		b.WriteString(completedStyle.Width(m.width).Render(fmt.Sprintf(" %s ", m.flash)))
		b.WriteString("\n")
	}

	// Status bar
	var statusBar string
	if m.snap.Running {
		statusBar = " [j/k]select [enter]details [s]ample data [q]uit "
	} else {
		statusBar = " [r]un now [j/k]select [enter]details [y]retry notification [s]ample data [q]uit "
	}
	b.WriteString(statusBarStyle.Width(m.width).Render(statusBar))

	return b.String()
}

func (m Model) renderPhases() string {
	phases := []domain.Phase{
		domain.PhaseIdle,
		domain.PhaseScanning,
		domain.PhaseExtracting,
		domain.PhaseNotifying,
		domain.PhaseComplete,
	}

	var parts []string
	for _, p := range phases {
		label := fmt.Sprintf(" %s ", p)
		if p == m.snap.Phase {
			parts = append(parts, phaseActiveStyle.Render(label))
		} else {
			parts = append(parts, phaseInactiveStyle.Render(label))
		}
	}

	return strings.Join(parts, "→")
}

func (m Model) renderRun() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("CURRENT RUN"))
	b.WriteString("\n")

	switch {
	case m.snap.Running:
		b.WriteString(runningStyle.Render("  ● " + phaseText(m.snap.Phase)))
	case m.snap.ErrorMsg != "":
		b.WriteString(failedStyle.Render("  ✗ " + m.snap.ErrorMsg))
	case m.snap.Summary != "":
		b.WriteString(completedStyle.Render("  ✓ " + m.snap.Summary))
	default:
		b.WriteString(idleStyle.Render("  Press r to start a delegation run"))
	}

	return b.String()
}

func phaseText(p domain.Phase) string {
	switch p {
	case domain.PhaseScanning:
		return "Scanning inbox for delegation requests..."
	case domain.PhaseExtracting:
		return "Extracting tasks from matching emails..."
	case domain.PhaseNotifying:
		return "Notifying teammates..."
	}
	return "Working..."
}

func (m Model) renderStats() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("SCAN STATS"))
	b.WriteString("\n")

	s := m.snap.Stats
	if s == nil {
		b.WriteString(idleStyle.Render("  No runs completed yet"))
		return b.String()
	}

	line := fmt.Sprintf("  Scanned %-4d Matched %-4d Extracted %-4d Sent %-4d Failed %-4d Success %d%%",
		s.Scanned, s.Matched, s.TasksExtracted, s.NotificationsSent, s.NotificationsFailed, s.SuccessRate())
	if s.NotificationsFailed > 0 {
		b.WriteString(warningStyle.Render(line))
	} else {
		b.WriteString(completedStyle.Render(line))
	}

	return b.String()
}

func (m Model) renderItems() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("DELEGATED TASKS"))
	b.WriteString("\n")

	if len(m.snap.Items) == 0 {
		b.WriteString(idleStyle.Render("  No delegated tasks"))
		return b.String()
	}

	for i, item := range m.snap.Items {
		cursor := " "
		if i == m.selected {
			cursor = "▸"
		}

		var glyph string
		var style lipgloss.Style
		switch item.NotificationStatus {
		case domain.NotificationSent:
			glyph, style = "✓", completedStyle
		case domain.NotificationFailed:
			glyph, style = "✗", failedStyle
		default:
			// Statuses arrive verbatim from the platform
			glyph, style = "?", dimmedStyle
		}

		line := fmt.Sprintf(" %s %s %-30s %-12s %-7s %-7s %s",
			cursor, glyph, truncate(item.Title, 30), truncate(item.Assignee, 12),
			item.Priority, item.Channel, formatTimestamp(item.Timestamp))
		b.WriteString(style.Render(line))
		b.WriteString("\n")

		if i == m.snap.ExpandedIndex {
			b.WriteString(renderItemDetail(item))
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func renderItemDetail(item domain.DelegationItem) string {
	var b strings.Builder
	detail := []string{
		fmt.Sprintf("      Assignee:  %s", item.Assignee),
		fmt.Sprintf("      Priority:  %s", item.Priority),
		fmt.Sprintf("      Channel:   %s", item.Channel),
		fmt.Sprintf("      Status:    %s", item.NotificationStatus),
	}
	if item.Timestamp != "" {
		detail = append(detail, fmt.Sprintf("      Delegated: %s", item.Timestamp))
	}
	for _, line := range detail {
		b.WriteString(dimmedStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderHistory() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("HISTORY"))
	b.WriteString("\n")

	shown := 0
	limit := 5

	for _, entry := range m.snap.History {
		if shown >= limit {
			break
		}
		detail := ""
		if entry.Stats != nil {
			detail = fmt.Sprintf("(%d sent / %d extracted)",
				entry.Stats.NotificationsSent, entry.Stats.TasksExtracted)
		}
		line := fmt.Sprintf("  %-18s %-40s %s",
			humanize.Time(entry.Timestamp), truncate(entry.Summary, 40), detail)
		b.WriteString(dimmedStyle.Render(line))
		b.WriteString("\n")
		shown++
	}

	if len(m.snap.History) > limit {
		b.WriteString(dimmedStyle.Render(fmt.Sprintf("  ... %d more", len(m.snap.History)-limit)))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// formatTimestamp renders an agent-reported timestamp. The platform usually
// sends RFC 3339, but the value is stored verbatim, so anything unparseable
// is shown as is.
func formatTimestamp(ts string) string {
	if ts == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return humanize.Time(t)
	}
	return truncate(ts, 16)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
