package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/watchmesh/watchmesh/internal/config"
	"github.com/watchmesh/watchmesh/internal/relay"
)

var relayRegion string

func init() {
	relayCmd.Flags().StringVar(&relayRegion, "region", "", "region this relay owns (required)")
	_ = relayCmd.MarkFlagRequired("region")
	rootCmd.AddCommand(relayCmd)
}

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the relay for one region against the server",
	RunE:  runRelay,
}

func runRelay(cmd *cobra.Command, args []string) error {
	if err := requireAddr(); err != nil {
		return err
	}
	if err := requireToken(); err != nil {
		return err
	}
	log := newLogger("watchmesh-relay")

	client := relay.NewHTTPServerClient(addrFlag, tokenFlag, 5*time.Second)
	engine := relay.NewEngine(log, client, relayRegion, config.DefaultConfigPollPeriod)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("relay starting", "region", relayRegion, "addr", addrFlag)
	return engine.Start(ctx)
}
