package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Official-Krish/ai-trading-zerodha/internal/ledger/sqlite"
	"github.com/Official-Krish/ai-trading-zerodha/internal/logger"
	"github.com/Official-Krish/ai-trading-zerodha/internal/server"
	"github.com/Official-Krish/ai-trading-zerodha/internal/trace"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve the dashboard read API over the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer trace.Shutdown(context.Background())

		ledger, err := sqlite.Open(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer ledger.Close()

		srv := server.New(cfg, ledger)

		errc := make(chan error, 1)
		go func() { errc <- srv.Start() }()

		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errc:
			return err
		case <-sigc:
			logger.Info(context.Background(), "Shutting down dashboard API")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}
