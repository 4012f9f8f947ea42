package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"texturelab/internal/domain"
)

// StatusReporter is how the worker advances job state. It is a
// message-passing boundary, not a function call: the worker and the
// façade deploy independently and the production reporter crosses the
// gap over HTTP.
type StatusReporter interface {
	Report(ctx context.Context, jobID string, status domain.JobStatus, kind domain.JobKind, results []string) error
}

// HTTPReporter posts status updates to the façade's webhook endpoint,
// authenticated with the shared worker token.
type HTTPReporter struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewHTTPReporter creates a reporter targeting the given webhook URL.
func NewHTTPReporter(url, token string, client *http.Client) *HTTPReporter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPReporter{url: url, token: token, httpClient: client}
}

type webhookPayload struct {
	JobID  string   `json:"jobId"`
	Status string   `json:"status"`
	Type   string   `json:"type"`
	Result []string `json:"result,omitempty"`
}

// Report delivers one status update. Delivery is at-least-once from the
// caller's perspective; the webhook endpoint is idempotent.
func (r *HTTPReporter) Report(ctx context.Context, jobID string, status domain.JobStatus, kind domain.JobKind, results []string) error {
	body, err := json.Marshal(webhookPayload{
		JobID:  jobID,
		Status: string(status),
		Type:   string(kind),
		Result: results,
	})
	if err != nil {
		return fmt.Errorf("reporter: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("reporter: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reporter: post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("reporter: webhook status %d", resp.StatusCode)
	}
	return nil
}
