package interfaces

import (
	"context"

	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

// Ledger is the append-only audit store for invocations, tool calls and
// portfolio snapshots. Writes within a cycle follow a fixed order: create
// invocation, update response, create tool call, snapshot.
type Ledger interface {
	// IncrementInvocationCount bumps the model's counter and returns the
	// updated row, creating the model on first use.
	IncrementInvocationCount(ctx context.Context, modelName string) (types.ModelRow, error)

	// CreateInvocation appends an invocation row with an empty response and
	// returns its id.
	CreateInvocation(ctx context.Context, modelID int64) (int64, error)

	// UpdateInvocationResponse stores the model's rationale text.
	UpdateInvocationResponse(ctx context.Context, invocationID int64, text string) error

	// CreateToolCall appends the cycle's resolved tool call.
	CreateToolCall(ctx context.Context, rec types.ToolCallRecord) error

	// CreatePortfolioSnapshot appends one portfolio-value sample.
	CreatePortfolioSnapshot(ctx context.Context, modelName string, netValue float64) error

	// RecentInvocations returns the newest invocations with nested tool
	// calls, newest first.
	RecentInvocations(ctx context.Context, limit int) ([]types.InvocationView, error)

	// PortfolioSeries returns all snapshots, oldest first.
	PortfolioSeries(ctx context.Context) ([]types.SnapshotView, error)

	Close() error
}
