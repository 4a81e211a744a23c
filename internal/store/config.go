package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

// Exchange codes accepted for order placement.
var AllowedExchanges = []string{"NSE", "BSE", "NFO", "CDS", "BCD", "BFO", "MCX"}

type Config struct {
	Mode               string `yaml:"mode"`        // DRY_RUN | LIVE
	DataSource         string `yaml:"data_source"` // STATIC | LIVE
	PollSeconds        int    `yaml:"poll_seconds"`
	CallTimeoutSeconds int    `yaml:"call_timeout_seconds"`
	LookbackMinutes    int    `yaml:"lookback_minutes"`

	// ExchangeMatch selects allow-list validation: "exact" (default) or
	// "contains", which accepts any code containing an allowed exchange
	// (the historical behavior).
	ExchangeMatch string `yaml:"exchange_match"`

	Universe []types.Instrument `yaml:"universe"`

	LLM struct {
		Provider       string `yaml:"provider"` // GEMINI | NOOP
		Model          string `yaml:"model"`
		ThinkingBudget int    `yaml:"thinking_budget"`
	} `yaml:"llm"`

	Ledger struct {
		Path string `yaml:"path"`
	} `yaml:"ledger"`

	Server struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.DataSource != "STATIC" && c.DataSource != "LIVE" {
		return fmt.Errorf("invalid data_source '%s': must be 'STATIC' or 'LIVE'", c.DataSource)
	}
	if len(c.Universe) == 0 {
		return errors.New("universe cannot be empty")
	}
	for _, inst := range c.Universe {
		if inst.Exchange == "" || inst.Symbol == "" {
			return fmt.Errorf("universe entry '%s/%s' missing exchange or symbol", inst.Exchange, inst.Symbol)
		}
	}
	if c.ExchangeMatch != "exact" && c.ExchangeMatch != "contains" {
		return fmt.Errorf("exchange_match must be 'exact' or 'contains', got '%s'", c.ExchangeMatch)
	}
	if c.PollSeconds <= 0 {
		return fmt.Errorf("poll_seconds must be positive, got %d", c.PollSeconds)
	}
	if c.LLM.Provider != "GEMINI" && c.LLM.Provider != "NOOP" {
		return fmt.Errorf("llm.provider must be 'GEMINI' or 'NOOP', got '%s'", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model cannot be empty")
	}
	return nil
}

// CallTimeout is the bound applied to each external call.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// PollInterval is the scheduler's fixed tick period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}

// Lookback is how far back historical candles are fetched each cycle.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackMinutes) * time.Minute
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.PollSeconds == 0 {
		c.PollSeconds = 60
	}
	if c.CallTimeoutSeconds == 0 {
		c.CallTimeoutSeconds = 30
	}
	if c.LookbackMinutes == 0 {
		c.LookbackMinutes = 120
	}
	if c.ExchangeMatch == "" {
		c.ExchangeMatch = "exact"
	}
	if c.DataSource == "" {
		c.DataSource = "STATIC"
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = "./data/trading_agent.db"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "NOOP"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-2.5-pro"
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
