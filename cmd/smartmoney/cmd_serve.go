package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/alphaforge/smartmoney/internal/persistence/postgres"
	"github.com/alphaforge/smartmoney/internal/report"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored backtest results over HTTP",
		Long: `Start the read-only results API backed by postgres: run listings,
full results by ID, health, and prometheus metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.PostgresDSN == "" {
				return fmt.Errorf("serve requires postgres_dsn in the config")
			}

			store, err := postgres.Connect(cmd.Context(), cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer store.Close()

			serverCfg := report.DefaultServerConfig()
			if addr != "" {
				serverCfg.Addr = addr
			}
			server := report.NewServer(serverCfg, store, prometheus.NewRegistry())

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				log.Info().Str("signal", sig.String()).Msg("shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(ctx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default 127.0.0.1:8080)")

	return cmd
}
