// Package engine runs the per-tick decision cycle: gather market and
// account state, assemble the prompt, invoke the policy oracle, and
// dispatch the resulting action with every step audited in the ledger.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Official-Krish/ai-trading-zerodha/internal/auditlog"
	"github.com/Official-Krish/ai-trading-zerodha/internal/indicators"
	"github.com/Official-Krish/ai-trading-zerodha/internal/interfaces"
	"github.com/Official-Krish/ai-trading-zerodha/internal/logger"
	"github.com/Official-Krish/ai-trading-zerodha/internal/oracle"
	"github.com/Official-Krish/ai-trading-zerodha/internal/prompt"
	"github.com/Official-Krish/ai-trading-zerodha/internal/store"
	"github.com/Official-Krish/ai-trading-zerodha/internal/trace"
	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

// timeframes fetched per instrument each cycle, prompt order.
var timeframes = []struct {
	Label    string
	Interval string
}{
	{"1m", "minute"},
	{"3m", "3minute"},
	{"5m", "5minute"},
}

type Engine struct {
	cfg      *store.Config
	broker   interfaces.Broker
	oracle   interfaces.Oracle
	ledger   interfaces.Ledger
	template string
}

func New(cfg *store.Config, broker interfaces.Broker, o interfaces.Oracle, ledger interfaces.Ledger) *Engine {
	return &Engine{cfg: cfg, broker: broker, oracle: o, ledger: ledger, template: prompt.DefaultTemplate}
}

// RunCycle executes one full decision cycle. Any failed external call
// aborts the cycle before an order can be considered; validation failures
// after the oracle responds are recorded in the ledger instead.
func (e *Engine) RunCycle(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "engine.RunCycle")
	defer span.End()

	start := time.Now()
	logger.Debug(ctx, "Starting decision cycle", "model", e.cfg.LLM.Model)

	model, err := e.ledger.IncrementInvocationCount(ctx, e.cfg.LLM.Model)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to increment invocation count", err)
		return err
	}

	invID, err := e.ledger.CreateInvocation(ctx, model.ID)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to create invocation", err)
		return err
	}
	logger.Debug(ctx, "Invocation created", "invocation_id", invID, "invocation_count", model.InvocationCount)

	blocks, err := e.collectIndicators(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to collect indicator data", err, "invocation_id", invID)
		return err
	}

	account, err := e.fetchAccount(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch account state", err, "invocation_id", invID)
		return err
	}
	logger.Debug(ctx, "Account state fetched",
		"available_cash", account.AvailableCash,
		"live_balance", account.LiveBalance,
		"open_positions", len(account.OpenPositions))

	rendered, err := prompt.Assemble(e.template, prompt.Inputs{
		InvocationCount: model.InvocationCount,
		OpenPositions:   account.OpenPositions,
		Blocks:          blocks,
		AvailableCash:   account.AvailableCash,
		AccountValue:    account.LiveBalance,
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to assemble prompt", err, "invocation_id", invID)
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout())
	result, err := e.oracle.Invoke(callCtx, rendered)
	cancel()
	if err != nil {
		logger.ErrorWithErr(ctx, "Policy invocation failed", err, "invocation_id", invID)
		return err
	}

	response := result.Rationale
	if response == "" {
		response = result.Text
	}
	if err := e.ledger.UpdateInvocationResponse(ctx, invID, response); err != nil {
		logger.ErrorWithErr(ctx, "Failed to persist invocation response", err, "invocation_id", invID)
		return err
	}

	action, err := oracle.DecodeAction(result.Call)
	if err != nil {
		// The model asked for something outside its vocabulary. Record the
		// failed attempt so the audit trail explains why nothing traded.
		logger.Warn(ctx, "Rejected tool call", "invocation_id", invID, "error", err.Error())
		rec := types.ToolCallRecord{
			InvocationID: invID,
			Type:         types.ActionUnknown,
			Error:        err.Error(),
		}
		if result.Call != nil {
			rec.Metadata = result.Call.Name
		}
		if lerr := e.ledger.CreateToolCall(ctx, rec); lerr != nil {
			logger.ErrorWithErr(ctx, "Failed to record rejected tool call", lerr, "invocation_id", invID)
			return lerr
		}
		_ = auditlog.Append(auditlog.Entry{InvocationID: invID, Action: string(types.ActionUnknown), Error: err.Error()})
		return nil
	}
	if action.Implicit {
		logger.Info(ctx, "No function call in response, treating as hold", "invocation_id", invID)
	}

	dispatcher := NewDispatcher(e.broker, store.AllowedExchanges, e.cfg.ExchangeMatch == "contains")
	dispatchCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout())
	res := dispatcher.Dispatch(dispatchCtx, action, account)
	cancel()

	rec := types.ToolCallRecord{
		InvocationID: invID,
		Type:         res.Type,
		Metadata:     res.Metadata,
		OrderID:      res.OrderID,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
		logger.Warn(ctx, "Action not executed", "invocation_id", invID, "action", string(res.Type), "error", res.Err.Error())
	} else {
		logger.Info(ctx, "Action dispatched",
			"invocation_id", invID, "action", string(res.Type),
			"symbol", action.Symbol, "qty", action.Quantity, "order_id", res.OrderID)
	}
	if err := e.ledger.CreateToolCall(ctx, rec); err != nil {
		logger.ErrorWithErr(ctx, "Failed to record tool call", err, "invocation_id", invID)
		return err
	}

	_ = auditlog.Append(auditlog.Entry{
		InvocationID: invID,
		Action:       string(res.Type),
		Symbol:       action.Symbol,
		Exchange:     action.Exchange,
		Quantity:     action.Quantity,
		OrderID:      res.OrderID,
		Error:        rec.Error,
	})

	logger.Debug(ctx, "Decision cycle finished", "invocation_id", invID, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Snapshot samples the account's live balance into the portfolio series.
func (e *Engine) Snapshot(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "engine.Snapshot")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout())
	m, err := e.broker.Margins(callCtx)
	cancel()
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch margins for snapshot", err)
		return &types.BrokerCallError{Op: "Margins", Err: err}
	}
	if err := e.ledger.CreatePortfolioSnapshot(ctx, e.cfg.LLM.Model, m.LiveBalance); err != nil {
		logger.ErrorWithErr(ctx, "Failed to persist portfolio snapshot", err)
		return err
	}
	logger.Debug(ctx, "Portfolio snapshot recorded", "net_value", m.LiveBalance)
	return nil
}

// collectIndicators fetches candles for every instrument and timeframe
// concurrently and derives the prompt series. Any fetch or derivation
// failure fails the whole collection.
func (e *Engine) collectIndicators(ctx context.Context) ([]prompt.InstrumentBlock, error) {
	to := time.Now()
	from := to.Add(-e.cfg.Lookback())

	blocks := make([]prompt.InstrumentBlock, len(e.cfg.Universe))
	errs := make([]error, len(e.cfg.Universe))

	var wg sync.WaitGroup
	for i, inst := range e.cfg.Universe {
		wg.Add(1)
		go func(i int, inst types.Instrument) {
			defer wg.Done()
			block := prompt.InstrumentBlock{Instrument: inst}
			for _, tf := range timeframes {
				callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout())
				candles, err := e.broker.HistoricalCandles(callCtx, inst.InstrumentToken, tf.Interval, from, to)
				cancel()
				if err != nil {
					errs[i] = fmt.Errorf("candles %s/%s %s: %w", inst.Exchange, inst.Symbol, tf.Interval,
						&types.BrokerCallError{Op: "HistoricalCandles", Err: err})
					return
				}
				result, err := indicators.Compute(candles)
				if err != nil {
					errs[i] = fmt.Errorf("indicators %s/%s %s: %w", inst.Exchange, inst.Symbol, tf.Interval, err)
					return
				}
				block.Frames = append(block.Frames, prompt.TimeframeBlock{Label: tf.Label, Data: result})
			}
			blocks[i] = block
		}(i, inst)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return blocks, nil
}

// fetchAccount reads margins, holdings and net positions fresh from the
// broker. Same-day MIS fills show up only in net positions, never in
// holdings, so both feed OpenPositions or the single-position guard would
// go blind for a full trading day.
func (e *Engine) fetchAccount(ctx context.Context) (types.AccountState, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout())
	margins, err := e.broker.Margins(callCtx)
	cancel()
	if err != nil {
		return types.AccountState{}, &types.BrokerCallError{Op: "Margins", Err: err}
	}

	callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout())
	holdings, err := e.broker.Holdings(callCtx)
	cancel()
	if err != nil {
		return types.AccountState{}, &types.BrokerCallError{Op: "Holdings", Err: err}
	}

	callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout())
	net, err := e.broker.NetPositions(callCtx)
	cancel()
	if err != nil {
		return types.AccountState{}, &types.BrokerCallError{Op: "NetPositions", Err: err}
	}

	open := make([]types.Position, 0, len(holdings)+len(net))
	open = append(open, holdings...)
	for _, p := range net {
		if p.Quantity > 0 {
			open = append(open, p)
		}
	}

	return types.AccountState{
		AvailableCash: margins.AvailableCash,
		LiveBalance:   margins.LiveBalance,
		OpenPositions: open,
	}, nil
}
