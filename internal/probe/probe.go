// Package probe implements the fixed set of reachability checks (http, dns,
// tcp, ping) behind one uniform contract, so the relay engine can schedule
// any of them identically.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/watchmesh/watchmesh/internal/config"
)

// Outcome is the result of a single probe run.
type Outcome struct {
	OK     bool
	Reason string
	Err    error
}

// Prober is the uniform contract every probe kind satisfies.
type Prober interface {
	Run(ctx context.Context, target string, timeout time.Duration) Outcome
}

// ForKind returns the Prober implementation for a probe kind.
func ForKind(kind config.ProbeKind) (Prober, error) {
	switch kind {
	case config.ProbeHTTP:
		return HTTPProber{}, nil
	case config.ProbeDNS:
		return DNSProber{}, nil
	case config.ProbeTCP:
		return TCPProber{}, nil
	case config.ProbePing:
		return PingProber{}, nil
	default:
		return nil, fmt.Errorf("probe: unknown kind %q", kind)
	}
}

// Run executes a single configured test with its own timeout budget,
// deriving a Prober from the test's kind.
func Run(ctx context.Context, t config.Test) Outcome {
	p, err := ForKind(t.Kind)
	if err != nil {
		return Outcome{OK: false, Reason: "unknown-kind", Err: err}
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = config.DefaultProbeTimeout
	}
	return p.Run(ctx, t.Target, timeout)
}
