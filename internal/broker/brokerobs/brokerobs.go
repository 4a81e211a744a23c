// Package brokerobs decorates a Broker with logging and tracing.
package brokerobs

import (
	"context"
	"time"

	"github.com/Official-Krish/ai-trading-zerodha/internal/interfaces"
	"github.com/Official-Krish/ai-trading-zerodha/internal/logger"
	"github.com/Official-Krish/ai-trading-zerodha/internal/trace"
	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

type observableBroker struct {
	broker interfaces.Broker
}

var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware.
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{broker: broker}
}

func (ob *observableBroker) Margins(ctx context.Context) (types.Margins, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Margins")
	defer span.End()

	m, err := ob.broker.Margins(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch margins", err)
		return types.Margins{}, err
	}
	logger.DebugSkip(ctx, 1, "Margins fetched", "available_cash", m.AvailableCash, "live_balance", m.LiveBalance)
	return m, nil
}

func (ob *observableBroker) Holdings(ctx context.Context) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Holdings")
	defer span.End()

	hs, err := ob.broker.Holdings(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch holdings", err)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Holdings fetched", "count", len(hs))
	return hs, nil
}

func (ob *observableBroker) NetPositions(ctx context.Context) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.NetPositions")
	defer span.End()

	ps, err := ob.broker.NetPositions(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch net positions", err)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Net positions fetched", "count", len(ps))
	return ps, nil
}

func (ob *observableBroker) HistoricalCandles(ctx context.Context, instrumentToken int, interval string, from, to time.Time) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "broker.HistoricalCandles")
	defer span.End()

	cs, err := ob.broker.HistoricalCandles(ctx, instrumentToken, interval, from, to)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch candles", err,
			"instrument_token", instrumentToken, "interval", interval)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Candles fetched",
		"instrument_token", instrumentToken, "interval", interval, "count", len(cs))
	return cs, nil
}

func (ob *observableBroker) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	ctx, span := trace.StartSpan(ctx, "broker.PlaceOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing order",
		"exchange", req.Exchange, "symbol", req.Symbol, "side", req.Side, "qty", req.Quantity)

	resp, err := ob.broker.PlaceOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err,
			"exchange", req.Exchange, "symbol", req.Symbol, "side", req.Side, "qty", req.Quantity)
		return types.OrderResp{}, err
	}

	logger.InfoSkip(ctx, 1, "Order placed",
		"symbol", req.Symbol, "order_id", resp.OrderID, "status", resp.Status)
	return resp, nil
}
