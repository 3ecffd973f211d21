package domain

import "math"

// RunStats holds the counters reported by the agent for one delegation run
type RunStats struct {
	Scanned             int
	Matched             int
	TasksExtracted      int
	NotificationsSent   int
	NotificationsFailed int
}

// SuccessRate returns the notification success rate as a whole percentage,
// rounded half away from zero. Zero extracted tasks yields 0.
func (s *RunStats) SuccessRate() int {
	if s == nil || s.TasksExtracted <= 0 {
		return 0
	}
	return int(math.Round(float64(s.NotificationsSent) / float64(s.TasksExtracted) * 100))
}

// Clone returns an independent copy, or nil for a nil receiver
func (s *RunStats) Clone() *RunStats {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// DelegationItem is one task delegated to a teammate. Items have no
// identifier of their own; their position in the run's item list is
// their identity.
type DelegationItem struct {
	Title              string
	Assignee           string
	Priority           Priority
	NotificationStatus NotificationStatus
	Channel            string
	Timestamp          string
}

// CloneItems returns an independent copy of a delegation item slice
func CloneItems(items []DelegationItem) []DelegationItem {
	if items == nil {
		return nil
	}
	out := make([]DelegationItem, len(items))
	copy(out, items)
	return out
}
