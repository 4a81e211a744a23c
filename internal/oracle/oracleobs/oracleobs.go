// Package oracleobs decorates an Oracle with logging and tracing.
package oracleobs

import (
	"context"

	"github.com/Official-Krish/ai-trading-zerodha/internal/interfaces"
	"github.com/Official-Krish/ai-trading-zerodha/internal/logger"
	"github.com/Official-Krish/ai-trading-zerodha/internal/trace"
	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

type observableOracle struct {
	oracle interfaces.Oracle
}

var _ interfaces.Oracle = (*observableOracle)(nil)

// Wrap wraps an oracle with observability middleware.
func Wrap(oracle interfaces.Oracle) interfaces.Oracle {
	return &observableOracle{oracle: oracle}
}

func (oo *observableOracle) Invoke(ctx context.Context, prompt string) (types.OracleResult, error) {
	ctx, span := trace.StartSpan(ctx, "oracle.Invoke")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Invoking policy oracle", "prompt_bytes", len(prompt))

	res, err := oo.oracle.Invoke(ctx, prompt)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Policy invocation failed", err)
		return types.OracleResult{}, err
	}

	callName := "none"
	if res.Call != nil {
		callName = res.Call.Name
	}
	logger.InfoSkip(ctx, 1, "Policy response received",
		"function_call", callName,
		"extra_calls", res.ExtraCalls,
		"rationale_bytes", len(res.Rationale),
	)
	if res.ExtraCalls > 0 {
		logger.WarnSkip(ctx, 1, "Model returned multiple function calls; only the first is honored",
			"ignored", res.ExtraCalls,
		)
	}
	return res, nil
}
