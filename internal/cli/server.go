package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/watchmesh/watchmesh/internal/alert"
	"github.com/watchmesh/watchmesh/internal/api"
	"github.com/watchmesh/watchmesh/internal/config"
	"github.com/watchmesh/watchmesh/internal/incident"
	"github.com/watchmesh/watchmesh/internal/state"
)

var (
	serverConfigPath string
	serverPort       int
)

func init() {
	serverCmd.Flags().StringVar(&serverConfigPath, "config", "config.yml", "path to the region/group/test YAML config")
	serverCmd.Flags().IntVar(&serverPort, "port", 3030, "port the HTTP API listens on")
	rootCmd.AddCommand(serverCmd)
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the central watchmesh server",
	RunE:  runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := requireToken(); err != nil {
		return err
	}
	log := newLogger("watchmesh-server")

	snap, err := config.LoadFile(serverConfigPath)
	if err != nil {
		return err
	}
	log.Info("config loaded", "regions", len(snap.Config.Regions), "hash", snap.Hash)

	agg := state.New(snap.Config)
	router := incident.NewRouter(log.Named("incident"), buildDispatchers(log), incident.MediumsFromConfig(snap.Config))

	srv := api.NewServer(log.Named("api"), tokenFlag, agg, router, snap)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runWatchdog(ctx, agg, router)
	go runReloadHandler(ctx, log.Named("reload"), serverConfigPath, agg, srv)

	listenAddr := fmt.Sprintf(":%d", serverPort)
	httpSrv := &http.Server{Addr: listenAddr, Handler: srv.Handler()}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", listenAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return wrapRuntimeFailure(httpSrv.Shutdown(shutdownCtx))
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return wrapRuntimeFailure(err)
		}
		return nil
	}
}

// runWatchdog fires the liveness sweep at a fixed one-second cadence,
// independent of the configured region intervals, and routes any newly
// opened incidents.
func runWatchdog(ctx context.Context, agg *state.Aggregate, router *incident.Router) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, inc := range agg.WatchdogTick() {
				router.Route(ctx, inc)
			}
		}
	}
}

// runReloadHandler re-reads the config file on SIGHUP and reconciles both
// the state aggregate and the snapshot the /config endpoint serves.
func runReloadHandler(ctx context.Context, log hclog.Logger, path string, agg *state.Aggregate, srv *api.Server) {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sighup:
			snap, err := config.LoadFile(path)
			if err != nil {
				log.Warn("config reload failed, keeping previous", "error", err)
				continue
			}
			agg.Reconfigure(snap.Config)
			srv.UpdateSnapshot(snap)
			log.Info("config reloaded", "hash", snap.Hash)
		}
	}
}

// buildDispatchers wires whichever alert mediums have configuration present
// in the environment. log is always available; webhook/script are opt-in.
func buildDispatchers(log hclog.Logger) []incident.Dispatcher {
	dispatchers := []incident.Dispatcher{alert.NewLogDispatcher(log.Named("alert.log"))}

	if url := os.Getenv("WATCHMESH_WEBHOOK_URL"); url != "" {
		dispatchers = append(dispatchers, alert.NewWebhookDispatcher(url))
	}
	if script := os.Getenv("WATCHMESH_ALERT_SCRIPT"); script != "" {
		dispatchers = append(dispatchers, alert.NewScriptDispatcher(script))
	}

	return dispatchers
}
