package probe

import (
	"context"
	"io"
	"net/http"
	"time"
)

// HTTPProber issues a GET and succeeds iff the response status is 2xx/3xx.
type HTTPProber struct{}

func (HTTPProber) Run(ctx context.Context, target string, timeout time.Duration) Outcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Outcome{OK: false, Reason: "invalid-url", Err: err}
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{OK: false, Reason: "timeout", Err: err}
		}
		return Outcome{OK: false, Reason: "request-failed", Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return Outcome{OK: true}
	}
	return Outcome{OK: false, Reason: "bad-status"}
}
