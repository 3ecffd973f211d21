package agentapi

import "encoding/json"

// InvokeRequest is the body of an agent invocation call
type InvokeRequest struct {
	Instruction string `json:"instruction"`
	AgentID     string `json:"agent_id"`
}

// InvokeResponse is the settlement envelope returned by the agent platform.
// Success reports whether the platform considers the invocation delivered;
// the agent's own verdict lives in Response. RawResponse carries the
// unparsed agent output when the platform includes it, Error a top-level
// platform error message.
type InvokeResponse struct {
	Success     bool           `json:"success"`
	Response    *AgentResponse `json:"response,omitempty"`
	RawResponse string         `json:"raw_response,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// AgentResponse is the agent's reply inside the envelope. Result is either
// a JSON object or a plain string depending on how the agent finished;
// callers probe it with ResultObject or ResultString.
type AgentResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// NestedMessage returns the agent's message, or "" when no agent response
// is present
func (r *InvokeResponse) NestedMessage() string {
	if r == nil || r.Response == nil {
		return ""
	}
	return r.Response.Message
}

// ResultString returns the result payload as a string when it is one
func (r *AgentResponse) ResultString() (string, bool) {
	if r == nil || len(r.Result) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(r.Result, &s); err != nil {
		return "", false
	}
	return s, true
}

// ResultObject returns the result payload as a map when it is a JSON object
func (r *AgentResponse) ResultObject() (map[string]any, bool) {
	if r == nil || len(r.Result) == 0 {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(r.Result, &m); err != nil {
		return nil, false
	}
	return m, true
}
