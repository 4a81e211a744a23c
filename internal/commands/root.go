// Package commands wires the CLI entrypoints for the trading agent and
// the dashboard API server.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Official-Krish/ai-trading-zerodha/internal/logger"
	"github.com/Official-Krish/ai-trading-zerodha/internal/store"
	"github.com/Official-Krish/ai-trading-zerodha/internal/trace"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "LLM-driven periodic trading agent for Zerodha",
	Long: `trader runs an autonomous trading agent that samples market data on a
fixed tick, asks an LLM policy for a single action, and executes it against
Zerodha Kite with every decision audited in a local ledger. The companion
server subcommand exposes the ledger as a read-only dashboard API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(serverCmd)
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads env + config and initialises logging and tracing. Shared by
// both subcommands.
func setup() (*store.Config, error) {
	_ = godotenv.Load()

	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	return cfg, nil
}
