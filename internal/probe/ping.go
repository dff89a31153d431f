package probe

import (
	"context"
	"net"
	"strings"
	"time"
)

// PingProber substitutes a low-port TCP reachability check for raw ICMP,
// which would require elevated process privileges to send; see DESIGN.md.
type PingProber struct{}

// candidatePorts are tried in order; the host is considered reachable as
// soon as one of them accepts a connection or actively refuses it (a RST is
// still proof the host is alive on the network).
var candidatePorts = []string{"7", "80", "443"}

func (PingProber) Run(ctx context.Context, target string, timeout time.Duration) Outcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: timeout}

	var lastErr error
	for _, port := range candidatePorts {
		conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(target, port))
		if err == nil {
			_ = conn.Close()
			return Outcome{OK: true}
		}
		if strings.Contains(err.Error(), "refused") {
			// Refusal means the host answered; treat as reachable.
			return Outcome{OK: true}
		}
		lastErr = err
		if ctx.Err() != nil {
			return Outcome{OK: false, Reason: "timeout", Err: err}
		}
	}
	return Outcome{OK: false, Reason: "unreachable", Err: lastErr}
}
