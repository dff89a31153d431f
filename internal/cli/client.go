package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/watchmesh/watchmesh/internal/httpclient"
)

// apiClient is the CLI's narrow, read-mostly view of the server API for
// status/incident/alerting test — distinct from relay.ServerClient, which
// only covers the config-fetch/result-push surface a relay needs.
type apiClient struct {
	baseURL string
	token   string
	client  *retryablehttp.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{baseURL: baseURL, token: token, client: httpclient.New(5*time.Second, 2)}
}

func (c *apiClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) post(ctx context.Context, path string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return nil
}

type analyticsWire struct {
	Regions []struct {
		Name       string    `json:"name"`
		Status     string    `json:"status"`
		LastUpdate time.Time `json:"last_update"`
	} `json:"regions"`
	Groups []struct {
		Name       string    `json:"name"`
		Status     string    `json:"status"`
		LastUpdate time.Time `json:"last_update"`
	} `json:"groups"`
}

type incidentsWire struct {
	Incidents []struct {
		Message   string    `json:"message"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"incidents"`
}
