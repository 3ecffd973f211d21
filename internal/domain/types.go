package domain

// Phase represents the lifecycle state of a delegation run
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseScanning   Phase = "scanning"
	PhaseExtracting Phase = "extracting"
	PhaseNotifying  Phase = "notifying"
	PhaseComplete   Phase = "complete"
)

// NotificationStatus represents the delivery state of a teammate notification.
// Values arrive from the agent platform and are stored verbatim; the two
// constants cover the statuses the platform is known to emit.
type NotificationStatus string

const (
	NotificationSent   NotificationStatus = "sent"
	NotificationFailed NotificationStatus = "failed"
)

// Priority represents task priority as reported by the agent
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)
