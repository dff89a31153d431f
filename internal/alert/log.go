// Package alert provides concrete incident.Dispatcher adapters: a log
// sink (the default medium), a webhook POST, and a local script exec.
// Telegram/SMS adapters are intentionally not implemented here — see
// DESIGN.md for why.
package alert

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/watchmesh/watchmesh/internal/incident"
)

// LogDispatcher logs every incident at warn level. It is always available
// and is what `alerting test` fires first.
type LogDispatcher struct {
	log hclog.Logger
}

func NewLogDispatcher(log hclog.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Name() string { return "log" }

func (d *LogDispatcher) Dispatch(_ context.Context, inc incident.Incident) error {
	d.log.Warn("incident", "kind", inc.Kind, "subject", inc.Subject, "message", inc.Message)
	return nil
}
