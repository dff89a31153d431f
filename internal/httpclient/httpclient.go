// Package httpclient is the one constructor for the pooled, retrying HTTP
// client every outbound caller in this repo uses: the relay's config-fetch
// and batch-push calls, the CLI's server client, and the webhook alerter.
// Each caller builds its own client with New.
package httpclient

import (
	"time"

	"github.com/hashicorp/go-cleanhttp"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

// New builds a retryablehttp.Client over a pooled cleanhttp transport, with
// logging silenced by default (callers that want retry visibility set
// Logger themselves) and bounded retries so an unreachable server never
// blocks a ticker indefinitely — a transport failure is logged and retried
// at the next tick, never fatal.
func New(timeout time.Duration, maxRetries int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.HTTPClient = cleanhttp.DefaultPooledClient()
	c.HTTPClient.Timeout = timeout
	c.RetryMax = maxRetries
	c.RetryWaitMin = 100 * time.Millisecond
	c.RetryWaitMax = time.Second
	c.Logger = nil
	return c
}
