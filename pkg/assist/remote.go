package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RemoteTrigger calls the deployed generate-response cloud function. The
// remote job writes the assistant message and clears the thread's typing
// flag itself; this client only reports the outcome.
type RemoteTrigger struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewRemoteTrigger builds a trigger client for the function endpoint.
// token, when non-empty, is sent as a bearer credential.
func NewRemoteTrigger(endpoint, token string, timeout time.Duration) *RemoteTrigger {
	if timeout <= 0 {
		timeout = 9 * time.Minute // event-driven function ceiling
	}
	return &RemoteTrigger{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

func (t *RemoteTrigger) Generate(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("generate call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("generate call: unexpected status %d", resp.StatusCode)
	}
	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode generate response: %w", err)
	}
	return out, nil
}
