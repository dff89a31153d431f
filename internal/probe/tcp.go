package probe

import (
	"context"
	"net"
	"time"
)

// TCPProber succeeds iff a TCP connection is established within timeout.
type TCPProber struct{}

func (TCPProber) Run(ctx context.Context, target string, timeout time.Duration) Outcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{OK: false, Reason: "timeout", Err: err}
		}
		return Outcome{OK: false, Reason: "connect-failed", Err: err}
	}
	_ = conn.Close()
	return Outcome{OK: true}
}
