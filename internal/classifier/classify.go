// Package classifier turns raw agent settlement envelopes into one of five
// run outcomes. Classification is total: any envelope, however malformed,
// maps to an outcome and never to an error.
package classifier

import (
	"strings"

	"github.com/hochfrequenz/inbox-orchestrator/internal/agentapi"
	"github.com/hochfrequenz/inbox-orchestrator/internal/domain"
)

// Kind identifies the classification branch an envelope landed in
type Kind string

const (
	KindIntegrationAuthError Kind = "integration_auth_error"
	KindStructuredSuccess    Kind = "structured_success"
	KindTextSuccess          Kind = "text_success"
	KindGenericComplete      Kind = "generic_complete"
	KindRemoteFailure        Kind = "remote_failure"
)

// Fallback texts used when the agent supplies none of its own
const (
	DefaultCompleteMessage = "Processing complete."
	DefaultFailureMessage  = "An error occurred while processing emails."
)

// Outcome is the interpreted settlement of one agent invocation. Stats,
// Items and Summary are set for structured successes; Summary alone for the
// other success kinds; Message for remote failures.
type Outcome struct {
	Kind    Kind
	Stats   *domain.RunStats
	Items   []domain.DelegationItem
	Summary string
	Message string
}

// Classify maps a settlement envelope to an outcome. The auth signature is
// checked before anything else, even on envelopes that otherwise report
// success, because the platform surfaces expired integration credentials as
// recursion or abort chatter in an otherwise ordinary reply.
func Classify(resp *agentapi.InvokeResponse) Outcome {
	if resp == nil {
		return Outcome{Kind: KindRemoteFailure, Message: DefaultFailureMessage}
	}

	strResult, isStr := resp.Response.ResultString()
	if hasAuthSignature(resp.RawResponse) || hasAuthSignature(resp.NestedMessage()) || (isStr && hasAuthSignature(strResult)) {
		return Outcome{Kind: KindIntegrationAuthError}
	}

	if resp.Success && resp.Response != nil && resp.Response.Status == "success" {
		if obj, ok := resp.Response.ResultObject(); ok {
			return Outcome{
				Kind:    KindStructuredSuccess,
				Stats:   statsFromPayload(obj["data"]),
				Items:   itemsFromPayload(obj["items"]),
				Summary: firstNonEmpty(stringField(obj, "summary"), stringField(obj, "text"), resp.NestedMessage()),
			}
		}
		if isStr {
			return Outcome{Kind: KindTextSuccess, Summary: strResult}
		}
		return Outcome{Kind: KindGenericComplete, Summary: firstNonEmpty(resp.NestedMessage(), DefaultCompleteMessage)}
	}

	message := firstNonEmpty(resp.NestedMessage(), resp.Error, DefaultFailureMessage)
	if hasAuthSignature(message) {
		return Outcome{Kind: KindIntegrationAuthError}
	}
	return Outcome{Kind: KindRemoteFailure, Message: message}
}

// hasAuthSignature reports whether text carries the platform's integration
// auth failure markers
func hasAuthSignature(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	return strings.Contains(lower, "recursion") || strings.Contains(lower, "aborting")
}

func statsFromPayload(v any) *domain.RunStats {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return &domain.RunStats{
		Scanned:             intField(m, "total_emails_scanned"),
		Matched:             intField(m, "matching_emails_found"),
		TasksExtracted:      intField(m, "tasks_extracted"),
		NotificationsSent:   intField(m, "notifications_sent"),
		NotificationsFailed: intField(m, "notifications_failed"),
	}
}

func itemsFromPayload(v any) []domain.DelegationItem {
	raw, ok := v.([]any)
	if !ok {
		return []domain.DelegationItem{}
	}
	items := make([]domain.DelegationItem, 0, len(raw))
	for _, el := range raw {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, domain.DelegationItem{
			Title:              stringField(m, "title"),
			Assignee:           stringField(m, "assignee"),
			Priority:           domain.Priority(stringField(m, "priority")),
			NotificationStatus: domain.NotificationStatus(stringField(m, "notification_status")),
			Channel:            stringField(m, "channel"),
			Timestamp:          stringField(m, "timestamp"),
		})
	}
	return items
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// intField reads a numeric field, treating anything missing, non-numeric or
// negative as zero
func intField(m map[string]any, key string) int {
	var n int
	switch v := m[key].(type) {
	case float64:
		n = int(v)
	case int:
		n = v
	}
	if n < 0 {
		return 0
	}
	return n
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
