package history

import (
	"testing"
	"time"

	"github.com/hochfrequenz/inbox-orchestrator/internal/domain"
)

func entry(summary string, minute int) domain.HistoryEntry {
	return domain.HistoryEntry{
		Timestamp: time.Date(2025, 6, 2, 9, minute, 0, 0, time.UTC),
		Summary:   summary,
		Stats:     &domain.RunStats{TasksExtracted: 2, NotificationsSent: 2},
		Items: []domain.DelegationItem{
			{Title: "Follow up on invoice", Assignee: "lena", NotificationStatus: domain.NotificationSent},
		},
	}
}

func TestLedger_NewestFirst(t *testing.T) {
	l := NewLedger()
	l.Record(entry("first run", 0))
	l.Record(entry("second run", 10))
	l.Record(entry("third run", 20))

	entries := l.Entries()
	if len(entries) != 3 {
		t.Fatalf("len(Entries()) = %d, want 3", len(entries))
	}
	if entries[0].Summary != "third run" || entries[2].Summary != "first run" {
		t.Errorf("order = %q, %q, %q; want newest first", entries[0].Summary, entries[1].Summary, entries[2].Summary)
	}
	if l.Len() != 3 {
		t.Errorf("Len() = %d, want 3", l.Len())
	}
}

func TestLedger_CopiesIn(t *testing.T) {
	l := NewLedger()
	e := entry("run", 0)
	l.Record(e)

	e.Items[0].NotificationStatus = domain.NotificationFailed
	e.Stats.NotificationsSent = 0

	got := l.Entries()[0]
	if got.Items[0].NotificationStatus != domain.NotificationSent {
		t.Error("ledger shares item storage with caller")
	}
	if got.Stats.NotificationsSent != 2 {
		t.Error("ledger shares stats storage with caller")
	}
}

func TestLedger_CopiesOut(t *testing.T) {
	l := NewLedger()
	l.Record(entry("run", 0))

	got := l.Entries()
	got[0].Items[0].Title = "tampered"
	got[0].Stats.TasksExtracted = 99

	again := l.Entries()[0]
	if again.Items[0].Title != "Follow up on invoice" {
		t.Error("returned entries share item storage with ledger")
	}
	if again.Stats.TasksExtracted != 2 {
		t.Error("returned entries share stats storage with ledger")
	}
}

func TestLedger_EmptyEntries(t *testing.T) {
	l := NewLedger()
	if got := l.Entries(); len(got) != 0 {
		t.Errorf("Entries() on empty ledger = %v", got)
	}
}
