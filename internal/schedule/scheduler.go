// Package schedule triggers delegation runs on a cron expression.
package schedule

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// TriggerFunc starts a delegation run. It returns false when the trigger was
// ignored because a run is already active.
type TriggerFunc func() bool

// Scheduler fires a trigger on a cron schedule
type Scheduler struct {
	expr     string
	parser   cron.Parser
	lastRun  time.Time
	tick     time.Duration
	mu       sync.RWMutex
	stopChan chan struct{}
}

// New creates a scheduler for the given cron expression
func New(expr string) (*Scheduler, error) {
	s := &Scheduler{
		expr:     expr,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		tick:     time.Minute,
		stopChan: make(chan struct{}),
	}

	if _, err := s.parser.Parse(expr); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	return s, nil
}

// ParseCron parses a cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// NextRun returns the next scheduled trigger time
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sched, err := s.parser.Parse(s.expr)
	if err != nil {
		return time.Time{}
	}

	return sched.Next(time.Now())
}

// UpdateCron swaps the cron expression, validating it first. The running
// scheduler picks up the new expression on its next tick.
func (s *Scheduler) UpdateCron(expr string) error {
	if _, err := s.parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expr = expr
	return nil
}

// shouldRunAt reports whether a trigger is due at the given time
func (s *Scheduler) shouldRunAt(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sched, err := s.parser.Parse(s.expr)
	if err != nil {
		return false
	}

	lastRun := s.lastRun
	if lastRun.IsZero() {
		lastRun = now.Add(-24 * time.Hour)
	}

	return now.After(sched.Next(lastRun))
}

// markRun consumes the current schedule slot
func (s *Scheduler) markRun(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = now
}

// Start begins the scheduler loop. It blocks until Stop is called.
func (s *Scheduler) Start(trigger TriggerFunc) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			now := time.Now()
			if !s.shouldRunAt(now) {
				continue
			}
			// The slot is consumed even when the trigger is skipped, so a
			// long-running manual run does not queue up a burst of retries.
			s.markRun(now)
			if !trigger() {
				log.Printf("scheduled delegation run skipped, a run is already active")
			}
		}
	}
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
}
