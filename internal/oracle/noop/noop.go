package noop

import (
	"context"

	"github.com/Official-Krish/ai-trading-zerodha/internal/logger"
	"github.com/Official-Krish/ai-trading-zerodha/internal/oracle"
	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

// Invoker is the fallback policy used when no LLM provider is configured.
// It always holds.
type Invoker struct{}

func NewInvoker() *Invoker {
	return &Invoker{}
}

func (d *Invoker) Invoke(ctx context.Context, prompt string) (types.OracleResult, error) {
	logger.Debug(ctx, "Noop oracle invoked - always holds")
	return types.OracleResult{
		Rationale: "No policy provider configured; holding.",
		Call:      &types.FunctionCall{Name: oracle.ToolHoldStock},
	}, nil
}
