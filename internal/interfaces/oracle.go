package interfaces

import (
	"context"

	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

// Oracle is the policy decision service invoked once per cycle. The call is
// single-shot and non-streaming from the engine's perspective.
type Oracle interface {
	Invoke(ctx context.Context, prompt string) (types.OracleResult, error)
}
