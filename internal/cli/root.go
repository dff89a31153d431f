// Package cli implements the watchmesh command-line interface with Cobra:
// server, relay, status, incident ls, and alerting test.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "watchmesh",
	Short:         "watchmesh — multi-region network availability monitor",
	Long:          `watchmesh runs a central server and per-region relays that probe network targets and raise incidents on sustained failure.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	addrFlag     string
	tokenFlag    string
	logLevelFlag string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", os.Getenv("WATCHDOG_ADDR"), "server base URL (env WATCHDOG_ADDR)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", os.Getenv("WATCHDOG_TOKEN"), "shared bearer token (env WATCHDOG_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "log level: trace|debug|info|warn|error")
}

// runtimeFailure marks an error that occurred after a component finished
// starting up successfully — a transient runtime failure that terminated
// the process, exit code 2. Unwrapped errors from a RunE (bad config,
// region mismatch, startup auth failure, missing flags) are startup
// failures, exit code 1.
type runtimeFailure struct{ err error }

func (r *runtimeFailure) Error() string { return r.err.Error() }
func (r *runtimeFailure) Unwrap() error { return r.err }

// wrapRuntimeFailure tags err, if any, as a post-startup runtime failure.
func wrapRuntimeFailure(err error) error {
	if err == nil {
		return nil
	}
	return &runtimeFailure{err: err}
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var rf *runtimeFailure
		if errors.As(err, &rf) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newLogger(name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  name,
		Level: hclog.LevelFromString(logLevelFlag),
	})
}

func requireAddr() error {
	if addrFlag == "" {
		return fmt.Errorf("--addr or WATCHDOG_ADDR is required")
	}
	return nil
}

func requireToken() error {
	if tokenFlag == "" {
		return fmt.Errorf("--token or WATCHDOG_TOKEN is required")
	}
	return nil
}
