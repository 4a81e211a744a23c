package commands

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Official-Krish/ai-trading-zerodha/internal/auditlog"
	"github.com/Official-Krish/ai-trading-zerodha/internal/broker/brokerobs"
	"github.com/Official-Krish/ai-trading-zerodha/internal/broker/zerodha"
	"github.com/Official-Krish/ai-trading-zerodha/internal/engine"
	"github.com/Official-Krish/ai-trading-zerodha/internal/interfaces"
	"github.com/Official-Krish/ai-trading-zerodha/internal/ledger/sqlite"
	"github.com/Official-Krish/ai-trading-zerodha/internal/logger"
	"github.com/Official-Krish/ai-trading-zerodha/internal/oracle/gemini"
	"github.com/Official-Krish/ai-trading-zerodha/internal/oracle/noop"
	"github.com/Official-Krish/ai-trading-zerodha/internal/oracle/oracleobs"
	"github.com/Official-Krish/ai-trading-zerodha/internal/scheduler"
	"github.com/Official-Krish/ai-trading-zerodha/internal/trace"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the periodic trading agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		defer trace.Shutdown(context.Background())

		if v := os.Getenv("AGENT_LOG_RETENTION_DAYS"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				_ = auditlog.CompressOlder(n)
			}
		}

		broker := brokerobs.Wrap(zerodha.NewZerodha(zerodha.Params{
			Mode:        cfg.Mode,
			DataSource:  cfg.DataSource,
			APIKey:      os.Getenv("KITE_API_KEY"),
			AccessToken: os.Getenv("KITE_ACCESS_TOKEN"),
			CallTimeout: cfg.CallTimeout(),
		}))
		if cfg.Mode == "DRY_RUN" {
			logger.Info(ctx, "Running in DRY_RUN mode, orders are simulated")
		}

		var policy interfaces.Oracle
		if cfg.LLM.Provider == "GEMINI" {
			policy = gemini.NewInvoker(cfg)
		} else {
			policy = noop.NewInvoker()
		}
		policy = oracleobs.Wrap(policy)

		ledger, err := sqlite.Open(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer ledger.Close()

		eng := engine.New(cfg, broker, policy, ledger)
		sched := scheduler.New(eng, cfg.PollInterval())

		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigc
			logger.Info(ctx, "Shutting down agent")
			cancel()
		}()

		logger.Info(ctx, "Agent started",
			"mode", cfg.Mode, "data_source", cfg.DataSource,
			"model", cfg.LLM.Model, "universe", len(cfg.Universe))
		sched.Run(ctx)

		if p, err := auditlog.SummarizeToday(); err == nil && p != "" {
			logger.Info(context.Background(), "Daily audit summary written", "path", p)
		}
		return nil
	},
}
