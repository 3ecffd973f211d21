package domain

import "time"

// HistoryEntry is the immutable record of one result-producing run, newest
// kept first by the ledger. Entries are snapshots: later retries never touch
// them.
type HistoryEntry struct {
	Timestamp time.Time
	Summary   string
	Stats     *RunStats
	Items     []DelegationItem
}

// Clone returns a deep copy of the entry
func (e HistoryEntry) Clone() HistoryEntry {
	return HistoryEntry{
		Timestamp: e.Timestamp,
		Summary:   e.Summary,
		Stats:     e.Stats.Clone(),
		Items:     CloneItems(e.Items),
	}
}

// Run outcomes as stored in RunRecord. Settled runs carry the classifier
// branch that produced them; the two error outcomes never reach the
// classifier at all.
const (
	OutcomeStructuredSuccess = "structured_success"
	OutcomeTextSuccess       = "text_success"
	OutcomeGenericComplete   = "generic_complete"
	OutcomeRemoteFailure     = "remote_failure"
	OutcomeAuthError         = "integration_auth_error"
	OutcomeTimeout           = "timeout"
	OutcomeNetworkError      = "network_error"
)

// RunRecord describes one finished delegation run for archival and
// completion hooks.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string
	Summary    string
	ErrorMsg   string
	Stats      *RunStats
	Items      []DelegationItem
}

// Failed reports whether the run settled without a usable result
func (r RunRecord) Failed() bool {
	switch r.Outcome {
	case OutcomeRemoteFailure, OutcomeAuthError, OutcomeTimeout, OutcomeNetworkError:
		return true
	}
	return false
}

// Clone returns a deep copy of the record
func (r RunRecord) Clone() RunRecord {
	c := r
	c.Stats = r.Stats.Clone()
	c.Items = CloneItems(r.Items)
	return c
}
