package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/watchmesh/watchmesh/internal/httpclient"
	"github.com/watchmesh/watchmesh/internal/incident"
)

// WebhookDispatcher POSTs a JSON payload describing the incident to a
// configured URL, using the same pooled/retrying client the relay uses.
type WebhookDispatcher struct {
	url    string
	client *retryablehttp.Client
}

func NewWebhookDispatcher(url string) *WebhookDispatcher {
	return &WebhookDispatcher{
		url:    url,
		client: httpclient.New(5*time.Second, 2),
	}
}

func (d *WebhookDispatcher) Name() string { return "webhook" }

type webhookPayload struct {
	Subject   string    `json:"subject"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, inc incident.Incident) error {
	body, err := json.Marshal(webhookPayload{
		Subject:   inc.Subject,
		Kind:      string(inc.Kind),
		Message:   inc.Message,
		Timestamp: inc.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("alert/webhook: marshal payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alert/webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert/webhook: post to %s: %w", d.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert/webhook: %s returned status %d", d.url, resp.StatusCode)
	}
	return nil
}
