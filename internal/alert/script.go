package alert

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/watchmesh/watchmesh/internal/incident"
)

// ScriptDispatcher execs a local script, passing the incident fields as
// environment variables. There is no suitable third-party "run a script"
// library, so this stays on os/exec (stdlib).
type ScriptDispatcher struct {
	path string
}

func NewScriptDispatcher(path string) *ScriptDispatcher {
	return &ScriptDispatcher{path: path}
}

func (d *ScriptDispatcher) Name() string { return "script" }

func (d *ScriptDispatcher) Dispatch(ctx context.Context, inc incident.Incident) error {
	cmd := exec.CommandContext(ctx, d.path)
	cmd.Env = append(os.Environ(),
		"WATCHDOG_INCIDENT_SUBJECT="+inc.Subject,
		"WATCHDOG_INCIDENT_KIND="+string(inc.Kind),
		"WATCHDOG_INCIDENT_MESSAGE="+inc.Message,
		"WATCHDOG_INCIDENT_TIMESTAMP="+inc.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("alert/script: %s: %w (output: %s)", d.path, err, out)
	}
	return nil
}
