package interfaces

import (
	"context"
	"time"

	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

// Broker is the capability surface the engine consumes from the brokerage.
// All reads happen fresh every cycle; nothing is cached behind this interface.
type Broker interface {
	// Margins returns available cash and live balance for the equity segment.
	Margins(ctx context.Context) (types.Margins, error)

	// Holdings returns current delivery holdings.
	Holdings(ctx context.Context) ([]types.Position, error)

	// NetPositions returns the net intraday positions.
	NetPositions(ctx context.Context) ([]types.Position, error)

	// HistoricalCandles fetches candles for an instrument token at the given
	// interval ("minute", "3minute", "5minute"), oldest first.
	HistoricalCandles(ctx context.Context, instrumentToken int, interval string, from, to time.Time) ([]types.Candle, error)

	// PlaceOrder places a regular intraday (MIS) order.
	PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error)
}
