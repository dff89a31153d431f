package probe

import (
	"context"
	"net"
	"time"
)

// DNSProber succeeds iff at least one A/AAAA record is returned.
type DNSProber struct{}

func (DNSProber) Run(ctx context.Context, target string, timeout time.Duration) Outcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver := net.DefaultResolver
	addrs, err := resolver.LookupHost(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{OK: false, Reason: "timeout", Err: err}
		}
		return Outcome{OK: false, Reason: "no-records", Err: err}
	}
	if len(addrs) == 0 {
		return Outcome{OK: false, Reason: "no-records"}
	}
	return Outcome{OK: true}
}
