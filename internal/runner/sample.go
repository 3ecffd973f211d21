package runner

import "github.com/hochfrequenz/inbox-orchestrator/internal/domain"

// Sample dataset shown when sample data is toggled on and the dashboard has
// nothing real to display yet.

// SampleStats returns demo run counters
func SampleStats() *domain.RunStats {
	return &domain.RunStats{
		Scanned:             50,
		Matched:             7,
		TasksExtracted:      9,
		NotificationsSent:   8,
		NotificationsFailed: 1,
	}
}

// SampleItems returns demo delegated items
func SampleItems() []domain.DelegationItem {
	return []domain.DelegationItem{
		{
			Title:              "Prepare Q3 budget review deck",
			Assignee:           "sarah",
			Priority:           domain.PriorityHigh,
			NotificationStatus: domain.NotificationSent,
			Channel:            "slack",
			Timestamp:          "2025-06-02T09:14:00Z",
		},
		{
			Title:              "Review vendor contract renewal",
			Assignee:           "james",
			Priority:           domain.PriorityHigh,
			NotificationStatus: domain.NotificationSent,
			Channel:            "email",
			Timestamp:          "2025-06-02T09:15:00Z",
		},
		{
			Title:              "Schedule customer onboarding call",
			Assignee:           "maria",
			Priority:           domain.PriorityMedium,
			NotificationStatus: domain.NotificationSent,
			Channel:            "slack",
			Timestamp:          "2025-06-02T09:17:00Z",
		},
		{
			Title:              "Update security compliance checklist",
			Assignee:           "alex",
			Priority:           domain.PriorityMedium,
			NotificationStatus: domain.NotificationFailed,
			Channel:            "email",
			Timestamp:          "2025-06-02T09:18:00Z",
		},
		{
			Title:              "Draft press release for product launch",
			Assignee:           "priya",
			Priority:           domain.PriorityLow,
			NotificationStatus: domain.NotificationSent,
			Channel:            "slack",
			Timestamp:          "2025-06-02T09:21:00Z",
		},
	}
}

// SampleSummary returns the demo run summary
func SampleSummary() string {
	return "Scanned 50 emails, found 7 with actionable tasks, extracted 9 tasks and notified 8 teammates. One notification could not be delivered."
}
