package tui

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/inbox-orchestrator/internal/agentapi"
	"github.com/hochfrequenz/inbox-orchestrator/internal/domain"
	"github.com/hochfrequenz/inbox-orchestrator/internal/history"
	"github.com/hochfrequenz/inbox-orchestrator/internal/runner"
)

const settledRaw = `{
	"success": true,
	"response": {
		"status": "success",
		"message": "Delegation complete.",
		"result": {
			"summary": "Delegated 2 tasks.",
			"data": {
				"total_emails_scanned": 8,
				"matching_emails_found": 2,
				"tasks_extracted": 2,
				"notifications_sent": 1,
				"notifications_failed": 1
			},
			"items": [
				{"title": "Prepare board slides", "assignee": "dana", "priority": "High", "notification_status": "sent", "channel": "slack", "timestamp": "2026-08-20T09:15:00Z"},
				{"title": "Collect expense reports", "assignee": "mike", "priority": "Low", "notification_status": "failed", "channel": "email"}
			]
		}
	}
}`

type stubInvoker struct {
	mu    sync.Mutex
	delay time.Duration
	resp  *agentapi.InvokeResponse
	err   error
}

func (f *stubInvoker) InvokeAgent(ctx context.Context, instruction, agentID string) (*agentapi.InvokeResponse, error) {
	f.mu.Lock()
	resp, err, delay := f.resp, f.err, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return resp, err
}

type stubInstructions struct{}

func (stubInstructions) RunInstruction() (string, error) { return "scan the inbox", nil }

func (stubInstructions) RetryInstruction(item domain.DelegationItem) (string, error) {
	return "resend notification for " + item.Title, nil
}

func settledEnvelope(t *testing.T) *agentapi.InvokeResponse {
	t.Helper()
	var resp agentapi.InvokeResponse
	if err := json.Unmarshal([]byte(settledRaw), &resp); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return &resp
}

func newTestModel(t *testing.T, invoker *stubInvoker) Model {
	t.Helper()
	ctrl := runner.New(invoker, stubInstructions{}, history.NewLedger(), runner.Options{
		AgentID:        "test-agent",
		InvokeTimeout:  time.Second,
		PhaseInterval:  25 * time.Millisecond,
		CompleteLinger: 40 * time.Millisecond,
	})
	t.Cleanup(ctrl.Close)

	m := NewModel(ctrl)
	m.width = 100
	m.height = 40
	return m
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// settleRun drives one delegation run to completion and refreshes the
// model's snapshot, so key handling sees the settled item list.
func settleRun(t *testing.T, m *Model) {
	t.Helper()
	if !m.ctrl.StartRun(context.Background()) {
		t.Fatal("run did not start")
	}
	waitFor(t, func() bool { return !m.ctrl.Snapshot().Running }, "run did not settle")
	m.snap = m.ctrl.Snapshot()
}

func TestNewModel(t *testing.T) {
	model := newTestModel(t, &stubInvoker{})

	if model.snap.Phase != domain.PhaseIdle {
		t.Errorf("initial phase = %q, want idle", model.snap.Phase)
	}

	if model.snap.Running {
		t.Error("model should start with no run active")
	}

	if model.selected != 0 {
		t.Errorf("selected = %d, want 0", model.selected)
	}
}

func TestModel_QuitCommands(t *testing.T) {
	model := newTestModel(t, &stubInvoker{})

	// Test 'q' quit
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("'q' should return a quit command")
	}

	// Test ctrl+c quit
	_, cmd = model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Error("ctrl+c should return a quit command")
	}
}

func TestModel_WindowResize(t *testing.T) {
	model := newTestModel(t, &stubInvoker{})

	newModel, _ := model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	model = newModel.(Model)

	if model.width != 120 {
		t.Errorf("width = %d, want 120", model.width)
	}
	if model.height != 40 {
		t.Errorf("height = %d, want 40", model.height)
	}
}

func TestModel_TickRefreshesSnapshot(t *testing.T) {
	invoker := &stubInvoker{resp: settledEnvelope(t), delay: 200 * time.Millisecond}
	model := newTestModel(t, invoker)

	// Start the run behind the model's back, as the daemon would
	model.ctrl.StartRun(context.Background())

	newModel, cmd := model.Update(TickMsg(time.Now()))
	model = newModel.(Model)

	if cmd == nil {
		t.Error("TickMsg should return a command for the next tick")
	}

	if !model.snap.Running {
		t.Error("tick should pick up the active run")
	}
}

func TestModel_RunKey(t *testing.T) {
	invoker := &stubInvoker{resp: settledEnvelope(t), delay: 200 * time.Millisecond}
	model := newTestModel(t, invoker)

	newModel, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	model = newModel.(Model)

	if !model.snap.Running {
		t.Error("'r' should start a delegation run")
	}
	if model.flash != "Delegation run started" {
		t.Errorf("flash = %q, want 'Delegation run started'", model.flash)
	}

	// A second trigger collapses into the active run
	newModel, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	model = newModel.(Model)

	if model.flash != "A delegation run is already active" {
		t.Errorf("flash = %q, want 'A delegation run is already active'", model.flash)
	}
}

func TestModel_SampleToggle(t *testing.T) {
	model := newTestModel(t, &stubInvoker{})

	newModel, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	model = newModel.(Model)

	if !model.snap.SampleData {
		t.Error("'s' should enable sample data")
	}
	if model.snap.Stats == nil {
		t.Error("sample data should fill in stats")
	}

	newModel, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	model = newModel.(Model)

	if model.snap.SampleData {
		t.Error("second 's' should disable sample data")
	}
}

func TestModel_SelectionNavigation(t *testing.T) {
	model := newTestModel(t, &stubInvoker{resp: settledEnvelope(t)})
	settleRun(t, &model)

	if len(model.snap.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(model.snap.Items))
	}

	// Scroll down
	newModel, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	model = newModel.(Model)

	if model.selected != 1 {
		t.Errorf("after j: selected = %d, want 1", model.selected)
	}

	// Clamped at the last row
	newModel, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	model = newModel.(Model)

	if model.selected != 1 {
		t.Errorf("after second j: selected = %d, want 1", model.selected)
	}

	// Scroll up
	newModel, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	model = newModel.(Model)

	if model.selected != 0 {
		t.Errorf("after k: selected = %d, want 0", model.selected)
	}

	// Clamped at the first row
	newModel, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	model = newModel.(Model)

	if model.selected != 0 {
		t.Errorf("after second k: selected = %d, want 0", model.selected)
	}
}

func TestModel_SelectionClampOnTick(t *testing.T) {
	model := newTestModel(t, &stubInvoker{resp: settledEnvelope(t)})
	settleRun(t, &model)

	model.selected = 5

	newModel, _ := model.Update(TickMsg(time.Now()))
	model = newModel.(Model)

	if model.selected != 1 {
		t.Errorf("selected = %d, want 1 (last item)", model.selected)
	}
}

func TestModel_ExpandToggle(t *testing.T) {
	model := newTestModel(t, &stubInvoker{resp: settledEnvelope(t)})
	settleRun(t, &model)

	newModel, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	model = newModel.(Model)

	newModel, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = newModel.(Model)

	if model.snap.ExpandedIndex != 1 {
		t.Errorf("ExpandedIndex = %d, want 1", model.snap.ExpandedIndex)
	}

	// Enter on the expanded row collapses it
	newModel, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = newModel.(Model)

	if model.snap.ExpandedIndex != -1 {
		t.Errorf("ExpandedIndex = %d, want -1", model.snap.ExpandedIndex)
	}
}

func TestModel_ExpandWithoutItems(t *testing.T) {
	model := newTestModel(t, &stubInvoker{})

	newModel, _ := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = newModel.(Model)

	if model.snap.ExpandedIndex != -1 {
		t.Errorf("ExpandedIndex = %d, want -1", model.snap.ExpandedIndex)
	}
}

func TestModel_RetryKey(t *testing.T) {
	model := newTestModel(t, &stubInvoker{resp: settledEnvelope(t)})
	settleRun(t, &model)

	// Select the failed item
	newModel, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	model = newModel.(Model)

	newModel, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	model = newModel.(Model)

	if cmd == nil {
		t.Fatal("'y' on a failed item should return a retry command")
	}
	if !strings.Contains(model.flash, "mike") {
		t.Errorf("flash = %q, want the assignee named", model.flash)
	}

	// Run the command synchronously and feed the result back
	msg := cmd()
	result, ok := msg.(RetryResultMsg)
	if !ok {
		t.Fatalf("cmd returned %T, want RetryResultMsg", msg)
	}
	if result.Err != nil {
		t.Fatalf("retry failed: %v", result.Err)
	}

	newModel, _ = model.Update(msg)
	model = newModel.(Model)

	if model.snap.Items[1].NotificationStatus != domain.NotificationSent {
		t.Errorf("item status = %q, want sent", model.snap.Items[1].NotificationStatus)
	}
	if model.flash != "Notification delivered" {
		t.Errorf("flash = %q, want 'Notification delivered'", model.flash)
	}
}

func TestModel_RetryKeyOnDeliveredItem(t *testing.T) {
	model := newTestModel(t, &stubInvoker{resp: settledEnvelope(t)})
	settleRun(t, &model)

	// Item 0 is already sent
	newModel, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	model = newModel.(Model)

	if cmd != nil {
		t.Error("'y' on a delivered item should not retry")
	}
	if model.flash != "Notification already delivered" {
		t.Errorf("flash = %q, want 'Notification already delivered'", model.flash)
	}
}

func TestModel_RetryKeyWhileRunning(t *testing.T) {
	invoker := &stubInvoker{resp: settledEnvelope(t), delay: 200 * time.Millisecond}
	model := newTestModel(t, invoker)

	model.ctrl.StartRun(context.Background())
	newModel, _ := model.Update(TickMsg(time.Now()))
	model = newModel.(Model)

	newModel, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	model = newModel.(Model)

	if cmd != nil {
		t.Error("'y' during an active run should be ignored")
	}
}

func TestFormatTimestamp(t *testing.T) {
	recent := time.Now().Add(-2 * time.Minute).Format(time.RFC3339)
	if got := formatTimestamp(recent); !strings.Contains(got, "ago") {
		t.Errorf("formatTimestamp(%q) = %q, want humanized", recent, got)
	}

	if got := formatTimestamp("yesterday-ish"); got != "yesterday-ish" {
		t.Errorf("formatTimestamp(unparseable) = %q, want verbatim", got)
	}

	if got := formatTimestamp(""); got != "" {
		t.Errorf("formatTimestamp(\"\") = %q, want empty", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}

	got := truncate("a very long delegation title", 10)
	if got != "a very ..." {
		t.Errorf("truncate long = %q, want 'a very ...'", got)
	}
}
