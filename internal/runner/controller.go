// Package runner drives delegation runs against the agent platform and owns
// the dashboard's live state.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hochfrequenz/inbox-orchestrator/internal/agentapi"
	"github.com/hochfrequenz/inbox-orchestrator/internal/classifier"
	"github.com/hochfrequenz/inbox-orchestrator/internal/domain"
	"github.com/hochfrequenz/inbox-orchestrator/internal/history"
)

// AgentInvoker sends one instruction to a platform agent and waits for the
// settlement envelope
type AgentInvoker interface {
	InvokeAgent(ctx context.Context, instruction, agentID string) (*agentapi.InvokeResponse, error)
}

// InstructionSource builds the instruction texts sent to the agent
type InstructionSource interface {
	RunInstruction() (string, error)
	RetryInstruction(item domain.DelegationItem) (string, error)
}

// Defaults for Options fields left zero
const (
	DefaultAgentID        = "email-delegation-orchestrator"
	DefaultInvokeTimeout  = 90 * time.Second
	DefaultPhaseInterval  = 2 * time.Second
	DefaultCompleteLinger = 3 * time.Second
)

// User-facing texts for runs that settled without a classifiable result
const (
	networkErrorMessage = "A network error occurred while contacting the agent platform. Please try again."
	authErrorMessage    = "The mail and chat integrations are not authorized. Reconnect them on the agent platform, then start the run again."
)

// Options configures a Controller. Zero fields fall back to the defaults
// above; tests shrink the durations to keep the timer paths fast.
type Options struct {
	AgentID        string
	InvokeTimeout  time.Duration
	PhaseInterval  time.Duration
	CompleteLinger time.Duration
}

func (o Options) withDefaults() Options {
	if o.AgentID == "" {
		o.AgentID = DefaultAgentID
	}
	if o.InvokeTimeout <= 0 {
		o.InvokeTimeout = DefaultInvokeTimeout
	}
	if o.PhaseInterval <= 0 {
		o.PhaseInterval = DefaultPhaseInterval
	}
	if o.CompleteLinger <= 0 {
		o.CompleteLinger = DefaultCompleteLinger
	}
	return o
}

// Controller runs the delegation workflow: it triggers agent invocations,
// walks the display phases on timers while the call is in flight, classifies
// the settlement, and keeps the state the dashboard renders.
//
// The phase timers are display pacing only. Settlement always wins: it
// cancels pending timers first, and a timer callback that already fired
// checks the run generation before touching anything, so a settled run can
// never be dragged back into an intermediate phase.
type Controller struct {
	invoker      AgentInvoker
	instructions InstructionSource
	ledger       *history.Ledger
	opts         Options

	mu          sync.Mutex
	phase       domain.Phase
	running     bool
	retries     int
	activeAgent string
	runID       string
	startedAt   time.Time
	stats       *domain.RunStats
	items       []domain.DelegationItem
	summary     string
	errorMsg    string
	expanded    int
	sample      bool

	gen         int
	closed      bool
	phaseTimers []*time.Timer
	idleTimer   *time.Timer

	onChange      func(Snapshot)
	onRunComplete func(domain.RunRecord)
}

// Snapshot is a point-in-time copy of the controller state. Everything in
// it is owned by the caller.
type Snapshot struct {
	RunID         string
	Phase         domain.Phase
	Running       bool
	ActiveAgent   string
	Stats         *domain.RunStats
	Items         []domain.DelegationItem
	Summary       string
	ErrorMsg      string
	ExpandedIndex int
	SampleData    bool
	History       []domain.HistoryEntry
}

// New creates a controller in the idle phase with no expanded item
func New(invoker AgentInvoker, instructions InstructionSource, ledger *history.Ledger, opts Options) *Controller {
	if ledger == nil {
		ledger = history.NewLedger()
	}
	return &Controller{
		invoker:      invoker,
		instructions: instructions,
		ledger:       ledger,
		opts:         opts.withDefaults(),
		phase:        domain.PhaseIdle,
		expanded:     -1,
	}
}

// OnChange registers the callback invoked with a fresh snapshot after every
// state change. It is called outside the controller lock.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// OnRunComplete registers the callback invoked once per settled run. It is
// called outside the controller lock.
func (c *Controller) OnRunComplete(fn func(domain.RunRecord)) {
	c.mu.Lock()
	c.onRunComplete = fn
	c.mu.Unlock()
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		RunID:         c.runID,
		Phase:         c.phase,
		Running:       c.running,
		ActiveAgent:   c.activeAgent,
		Stats:         c.stats.Clone(),
		Items:         domain.CloneItems(c.items),
		Summary:       c.summary,
		ErrorMsg:      c.errorMsg,
		ExpandedIndex: c.expanded,
		SampleData:    c.sample,
		History:       c.ledger.Entries(),
	}
	// Sample data fills display gaps only; real results always win.
	if c.sample {
		if snap.Stats == nil {
			snap.Stats = SampleStats()
		}
		if len(snap.Items) == 0 {
			snap.Items = SampleItems()
		}
		if snap.Summary == "" {
			snap.Summary = SampleSummary()
		}
	}
	return snap
}

func (c *Controller) notifyChange() {
	c.mu.Lock()
	fn := c.onChange
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// StartRun begins a delegation run and returns whether it started. A
// trigger while a run is already active is a no-op returning false, so
// button mashing and scheduler overlap collapse into the active run. The
// context bounds the agent call, not the display timers.
func (c *Controller) StartRun(ctx context.Context) bool {
	c.mu.Lock()
	if c.running || c.closed {
		c.mu.Unlock()
		return false
	}
	c.gen++
	gen := c.gen
	c.cancelTimersLocked()
	c.running = true
	c.phase = domain.PhaseScanning
	c.activeAgent = c.opts.AgentID
	c.runID = uuid.NewString()
	c.startedAt = time.Now()
	c.errorMsg = ""
	c.expanded = -1
	c.schedulePhaseTimersLocked(gen)
	c.mu.Unlock()

	c.notifyChange()
	go c.execute(ctx, gen)
	return true
}

func (c *Controller) schedulePhaseTimersLocked(gen int) {
	interval := c.opts.PhaseInterval
	c.phaseTimers = []*time.Timer{
		time.AfterFunc(interval, func() { c.advancePhase(gen, domain.PhaseExtracting) }),
		time.AfterFunc(2*interval, func() { c.advancePhase(gen, domain.PhaseNotifying) }),
	}
}

// advancePhase moves the display phase forward unless the run already
// settled or a newer run owns the state
func (c *Controller) advancePhase(gen int, phase domain.Phase) {
	c.mu.Lock()
	if gen != c.gen || !c.running {
		c.mu.Unlock()
		return
	}
	c.phase = phase
	c.mu.Unlock()
	c.notifyChange()
}

func (c *Controller) execute(ctx context.Context, gen int) {
	instruction, err := c.instructions.RunInstruction()
	if err != nil {
		c.settle(gen, nil, fmt.Errorf("failed to build run instruction: %w", err))
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.InvokeTimeout)
	defer cancel()

	resp, err := c.invoker.InvokeAgent(callCtx, instruction, c.opts.AgentID)
	c.settle(gen, resp, err)
}

// settle applies the outcome of one agent call. Exactly one settlement is
// applied per run: the generation and running guards make late or duplicate
// calls no-ops.
func (c *Controller) settle(gen int, resp *agentapi.InvokeResponse, err error) {
	c.mu.Lock()
	if gen != c.gen || !c.running {
		c.mu.Unlock()
		return
	}
	c.cancelTimersLocked()

	rec := domain.RunRecord{ID: c.runID, StartedAt: c.startedAt, FinishedAt: time.Now()}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			rec.Outcome = domain.OutcomeTimeout
			c.errorMsg = c.timeoutMessage()
		} else {
			rec.Outcome = domain.OutcomeNetworkError
			c.errorMsg = networkErrorMessage
		}
		rec.ErrorMsg = c.errorMsg
	} else {
		out := classifier.Classify(resp)
		rec.Outcome = string(out.Kind)
		switch out.Kind {
		case classifier.KindIntegrationAuthError:
			c.errorMsg = authErrorMessage
			rec.ErrorMsg = c.errorMsg
		case classifier.KindRemoteFailure:
			c.errorMsg = out.Message
			rec.ErrorMsg = c.errorMsg
		case classifier.KindStructuredSuccess:
			c.stats = out.Stats
			c.items = out.Items
			c.summary = out.Summary
		default:
			c.stats = nil
			c.items = nil
			c.summary = out.Summary
		}
	}

	if !rec.Failed() {
		rec.Summary = c.summary
		rec.Stats = c.stats.Clone()
		rec.Items = domain.CloneItems(c.items)
		c.ledger.Record(domain.HistoryEntry{
			Timestamp: rec.FinishedAt,
			Summary:   c.summary,
			Stats:     c.stats,
			Items:     c.items,
		})
	}

	c.running = false
	c.activeAgent = ""
	c.phase = domain.PhaseComplete
	c.idleTimer = time.AfterFunc(c.opts.CompleteLinger, func() { c.returnToIdle(gen) })
	onComplete := c.onRunComplete
	c.mu.Unlock()

	c.notifyChange()
	if onComplete != nil {
		onComplete(rec)
	}
}

// returnToIdle ends the complete linger
func (c *Controller) returnToIdle(gen int) {
	c.mu.Lock()
	if gen != c.gen || c.running || c.phase != domain.PhaseComplete {
		c.mu.Unlock()
		return
	}
	c.phase = domain.PhaseIdle
	c.mu.Unlock()
	c.notifyChange()
}

func (c *Controller) cancelTimersLocked() {
	for _, t := range c.phaseTimers {
		t.Stop()
	}
	c.phaseTimers = nil
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
}

func (c *Controller) timeoutMessage() string {
	return fmt.Sprintf("The delegation run timed out after %d seconds. Please try again.", int(c.opts.InvokeTimeout.Seconds()))
}

// RetryNotification asks the agent to resend the notification for the
// delegated item at index. The item flips to sent only when the platform
// confirms delivery; on any failure the item keeps its status and the error
// is returned for logging. The dashboard itself never shows retry failures.
func (c *Controller) RetryNotification(ctx context.Context, index int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("controller is closed")
	}
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("delegation run in progress")
	}
	if index < 0 || index >= len(c.items) {
		c.mu.Unlock()
		return fmt.Errorf("no delegated item at index %d", index)
	}
	gen := c.gen
	item := c.items[index]
	c.retries++
	c.activeAgent = c.opts.AgentID
	c.mu.Unlock()
	c.notifyChange()

	defer func() {
		c.mu.Lock()
		c.retries--
		if c.retries == 0 && !c.running && gen == c.gen {
			c.activeAgent = ""
		}
		c.mu.Unlock()
		c.notifyChange()
	}()

	instruction, err := c.instructions.RetryInstruction(item)
	if err != nil {
		return fmt.Errorf("failed to build retry instruction: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.InvokeTimeout)
	defer cancel()

	resp, err := c.invoker.InvokeAgent(callCtx, instruction, c.opts.AgentID)
	if err != nil {
		return fmt.Errorf("failed to retry notification: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("retry rejected: empty settlement from platform")
	}
	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = resp.NestedMessage()
		}
		if reason == "" {
			reason = "agent did not confirm delivery"
		}
		return fmt.Errorf("retry rejected: %s", reason)
	}

	c.mu.Lock()
	// A run that started while the retry was in flight owns the item list
	// now; the confirmation applies only to the list it was issued against.
	if gen == c.gen && index < len(c.items) {
		c.items[index].NotificationStatus = domain.NotificationSent
	}
	c.mu.Unlock()
	return nil
}

// SetExpandedItem selects the item whose details are expanded. Any negative
// index clears the selection.
func (c *Controller) SetExpandedItem(index int) {
	c.mu.Lock()
	if index < 0 {
		index = -1
	}
	c.expanded = index
	c.mu.Unlock()
	c.notifyChange()
}

// SetSampleData toggles sample-data substitution for empty display fields
func (c *Controller) SetSampleData(enabled bool) {
	c.mu.Lock()
	c.sample = enabled
	c.mu.Unlock()
	c.notifyChange()
}

// History returns the recorded runs, newest first
func (c *Controller) History() []domain.HistoryEntry {
	return c.ledger.Entries()
}

// Close cancels all pending timers and fences any in-flight settlement. The
// controller is not usable afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.gen++
	c.cancelTimersLocked()
	c.running = false
	c.activeAgent = ""
	c.mu.Unlock()
}
