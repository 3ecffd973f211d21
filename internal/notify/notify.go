package notify

import (
	"errors"
	"fmt"

	"github.com/hochfrequenz/inbox-orchestrator/internal/domain"
)

// NotificationType classifies how a notification should surface
type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifySuccess NotificationType = "success"
	NotifyWarning NotificationType = "warning"
	NotifyError   NotificationType = "error"
)

// Notification is one operator-facing message about a run
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	RunID   string // Links the notification back to an archived run
}

// Notifier delivers notifications over one channel (desktop, Slack, ...)
type Notifier interface {
	Send(n Notification) error
}

// ForRunRecord builds the operator notification for a settled delegation run
func ForRunRecord(rec domain.RunRecord) Notification {
	if rec.Failed() {
		msg := rec.ErrorMsg
		if msg == "" {
			msg = "The delegation run did not produce a result."
		}
		return Notification{
			Title:   "Delegation run failed",
			Message: msg,
			Type:    NotifyError,
			RunID:   rec.ID,
		}
	}

	msg := rec.Summary
	if msg == "" {
		msg = "The delegation run finished."
	}
	typ := NotifySuccess
	if rec.Stats != nil {
		msg = fmt.Sprintf("%s %d of %d notifications delivered.", msg, rec.Stats.NotificationsSent, rec.Stats.TasksExtracted)
		if rec.Stats.NotificationsFailed > 0 {
			typ = NotifyWarning
		}
	}
	return Notification{
		Title:   "Delegation run complete",
		Message: msg,
		Type:    typ,
		RunID:   rec.ID,
	}
}

// MultiNotifier fans one notification out to several channels
type MultiNotifier struct {
	targets []Notifier
}

// NewMultiNotifier creates a notifier that sends through every target
func NewMultiNotifier(targets ...Notifier) *MultiNotifier {
	return &MultiNotifier{targets: targets}
}

// Send delivers to all targets and reports the failures together. One
// broken channel does not stop the others.
func (m *MultiNotifier) Send(n Notification) error {
	var errs []error
	for _, target := range m.targets {
		if err := target.Send(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopNotifier swallows everything, used when notifications are turned off
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }
