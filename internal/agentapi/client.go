package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client invokes agents on the remote agent platform over HTTP. The caller's
// context bounds each call; the client itself sets no timeout so that a
// context deadline is always the one that fires.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the platform's invocation endpoint
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// InvokeAgent sends one instruction to the named agent and waits for the
// settlement envelope. A non-nil error means the call itself failed
// (network, timeout, unparseable reply); a platform-reported failure comes
// back as a normal envelope with Success false.
func (c *Client) InvokeAgent(ctx context.Context, instruction, agentID string) (*InvokeResponse, error) {
	body, err := json.Marshal(InvokeRequest{Instruction: instruction, AgentID: agentID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invoke request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build invoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke agent: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoke response: %w", err)
	}

	// The platform reports agent failures inside the envelope, usually with
	// a non-200 status as well, so a decodable body wins over the status.
	var envelope InvokeResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("agent platform returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to unmarshal invoke response: %w", err)
	}

	return &envelope, nil
}
