package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Official-Krish/ai-trading-zerodha/internal/oracle"
	"github.com/Official-Krish/ai-trading-zerodha/internal/store"
	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

// memLedger is an in-memory interfaces.Ledger capturing every write.
type memLedger struct {
	model     types.ModelRow
	responses map[int64]string
	toolCalls []types.ToolCallRecord
	snapshots []float64
	nextInv   int64
}

func newMemLedger() *memLedger {
	return &memLedger{responses: map[int64]string{}}
}

func (l *memLedger) IncrementInvocationCount(ctx context.Context, modelName string) (types.ModelRow, error) {
	if l.model.ID == 0 {
		l.model = types.ModelRow{ID: 1, Name: modelName}
	}
	l.model.InvocationCount++
	return l.model, nil
}

func (l *memLedger) CreateInvocation(ctx context.Context, modelID int64) (int64, error) {
	l.nextInv++
	return l.nextInv, nil
}

func (l *memLedger) UpdateInvocationResponse(ctx context.Context, invocationID int64, text string) error {
	l.responses[invocationID] = text
	return nil
}

func (l *memLedger) CreateToolCall(ctx context.Context, rec types.ToolCallRecord) error {
	l.toolCalls = append(l.toolCalls, rec)
	return nil
}

func (l *memLedger) CreatePortfolioSnapshot(ctx context.Context, modelName string, netValue float64) error {
	l.snapshots = append(l.snapshots, netValue)
	return nil
}

func (l *memLedger) RecentInvocations(ctx context.Context, limit int) ([]types.InvocationView, error) {
	return nil, nil
}

func (l *memLedger) PortfolioSeries(ctx context.Context) ([]types.SnapshotView, error) {
	return nil, nil
}

func (l *memLedger) Close() error { return nil }

// scriptedOracle returns a fixed result, capturing the rendered prompt.
type scriptedOracle struct {
	result types.OracleResult
	err    error
	prompt string
}

func (o *scriptedOracle) Invoke(ctx context.Context, prompt string) (types.OracleResult, error) {
	o.prompt = prompt
	if o.err != nil {
		return types.OracleResult{}, o.err
	}
	return o.result, nil
}

func testCandles(n int) []types.Candle {
	out := make([]types.Candle, n)
	base := time.Date(2025, 9, 1, 9, 15, 0, 0, time.UTC)
	for i := range out {
		px := 100.0 + float64(i)*0.25
		out[i] = types.Candle{
			OpenTime: base.Add(time.Duration(i) * time.Minute),
			Open:     px, High: px + 0.5, Low: px - 0.5, Close: px + 0.1,
			Volume: 1000,
		}
	}
	return out
}

func testConfig() *store.Config {
	cfg := &store.Config{
		Mode:               "DRY_RUN",
		DataSource:         "STATIC",
		PollSeconds:        60,
		CallTimeoutSeconds: 5,
		LookbackMinutes:    120,
		ExchangeMatch:      "exact",
		Universe: []types.Instrument{
			{Exchange: "NSE", Symbol: "SCHNEIDER", InstrumentToken: 388865},
			{Exchange: "NSE", Symbol: "CDSL", InstrumentToken: 3406081},
			{Exchange: "NSE", Symbol: "ONGC", InstrumentToken: 633601},
		},
	}
	cfg.LLM.Provider = "GEMINI"
	cfg.LLM.Model = "gemini-2.5-pro"
	return cfg
}

func TestRunCycle_BuyDispatched(t *testing.T) {
	t.Setenv("AGENT_LOG_DIR", t.TempDir())

	broker := &orderRecorder{
		margins: types.Margins{AvailableCash: 500, LiveBalance: 500},
		candles: testCandles(30),
	}
	o := &scriptedOracle{result: types.OracleResult{
		Rationale: "Momentum on ONGC across all three timeframes supports an entry.",
		Call: &types.FunctionCall{
			Name: oracle.ToolBuyStock,
			Args: map[string]any{"exchange": "NSE", "symbol": "ONGC", "quantity": float64(5)},
		},
	}}
	ledger := newMemLedger()

	eng := New(testConfig(), broker, o, ledger)
	require.NoError(t, eng.RunCycle(context.Background()))

	require.Len(t, broker.orders, 1)
	assert.Equal(t, "BUY", broker.orders[0].Side)
	assert.Equal(t, "ONGC", broker.orders[0].Symbol)

	require.Len(t, ledger.toolCalls, 1)
	tc := ledger.toolCalls[0]
	assert.Equal(t, types.ActionBuy, tc.Type)
	assert.Equal(t, "ORD-1", tc.OrderID)
	assert.Empty(t, tc.Error)

	// Rationale persisted before dispatch outcome.
	assert.Contains(t, ledger.responses[tc.InvocationID], "Momentum on ONGC")

	// Prompt carried account state and all three instruments.
	assert.Contains(t, o.prompt, "₹500.00")
	assert.Contains(t, o.prompt, "SCHNEIDER")
	assert.Contains(t, o.prompt, "CDSL")
	assert.Contains(t, o.prompt, "ONGC")
}

func TestRunCycle_NoFunctionCallIsImplicitHold(t *testing.T) {
	t.Setenv("AGENT_LOG_DIR", t.TempDir())

	broker := &orderRecorder{
		margins: types.Margins{AvailableCash: 500, LiveBalance: 500},
		candles: testCandles(30),
	}
	o := &scriptedOracle{result: types.OracleResult{
		Text: "Market looks choppy, nothing worth doing right now.",
	}}
	ledger := newMemLedger()

	eng := New(testConfig(), broker, o, ledger)
	require.NoError(t, eng.RunCycle(context.Background()))

	assert.Empty(t, broker.orders)
	require.Len(t, ledger.toolCalls, 1)
	assert.Equal(t, types.ActionHold, ledger.toolCalls[0].Type)
	assert.Equal(t, holdMetadata, ledger.toolCalls[0].Metadata)
	assert.Equal(t, "Market looks choppy, nothing worth doing right now.", ledger.responses[1])
}

func TestRunCycle_UnrecognizedToolAudited(t *testing.T) {
	t.Setenv("AGENT_LOG_DIR", t.TempDir())

	broker := &orderRecorder{
		margins: types.Margins{AvailableCash: 500, LiveBalance: 500},
		candles: testCandles(30),
	}
	o := &scriptedOracle{result: types.OracleResult{
		Rationale: "Shorting looks attractive here.",
		Call:      &types.FunctionCall{Name: "short_stock", Args: map[string]any{"symbol": "ONGC"}},
	}}
	ledger := newMemLedger()

	eng := New(testConfig(), broker, o, ledger)
	require.NoError(t, eng.RunCycle(context.Background()))

	assert.Empty(t, broker.orders)
	require.Len(t, ledger.toolCalls, 1)
	assert.Equal(t, types.ActionUnknown, ledger.toolCalls[0].Type)
	assert.Contains(t, ledger.toolCalls[0].Error, "short_stock")
	// Rationale still persisted even though the action was rejected.
	assert.Equal(t, "Shorting looks attractive here.", ledger.responses[1])
}

func TestRunCycle_OracleFailureAbortsBeforeDispatch(t *testing.T) {
	t.Setenv("AGENT_LOG_DIR", t.TempDir())

	broker := &orderRecorder{
		margins: types.Margins{AvailableCash: 500, LiveBalance: 500},
		candles: testCandles(30),
	}
	o := &scriptedOracle{err: &types.OracleCallError{Err: errors.New("deadline exceeded")}}
	ledger := newMemLedger()

	eng := New(testConfig(), broker, o, ledger)
	err := eng.RunCycle(context.Background())

	require.Error(t, err)
	var oce *types.OracleCallError
	assert.ErrorAs(t, err, &oce)
	assert.Empty(t, broker.orders)
	assert.Empty(t, ledger.toolCalls)
}

func TestRunCycle_CandleFailureAborts(t *testing.T) {
	t.Setenv("AGENT_LOG_DIR", t.TempDir())

	broker := &orderRecorder{
		margins:   types.Margins{AvailableCash: 500, LiveBalance: 500},
		candleErr: errors.New("rate limited"),
	}
	o := &scriptedOracle{}
	ledger := newMemLedger()

	eng := New(testConfig(), broker, o, ledger)
	err := eng.RunCycle(context.Background())

	require.Error(t, err)
	var bce *types.BrokerCallError
	require.ErrorAs(t, err, &bce, "read failures carry the broker classification")
	assert.Equal(t, "HistoricalCandles", bce.Op)
	assert.Empty(t, o.prompt, "oracle must not be invoked on stale data")
	assert.Empty(t, broker.orders)
}

func TestRunCycle_BuyRejectedWithIntradayPosition(t *testing.T) {
	t.Setenv("AGENT_LOG_DIR", t.TempDir())

	// An MIS fill from an earlier cycle shows up only in net positions;
	// holdings stay empty until delivery. The buy guard must still see it.
	broker := &orderRecorder{
		margins:      types.Margins{AvailableCash: 400, LiveBalance: 500},
		candles:      testCandles(30),
		netPositions: []types.Position{{Symbol: "ONGC", Exchange: "NSE", Quantity: 5}},
	}
	o := &scriptedOracle{result: types.OracleResult{
		Call: &types.FunctionCall{
			Name: oracle.ToolBuyStock,
			Args: map[string]any{"exchange": "NSE", "symbol": "CDSL", "quantity": float64(2)},
		},
	}}
	ledger := newMemLedger()

	eng := New(testConfig(), broker, o, ledger)
	require.NoError(t, eng.RunCycle(context.Background()))

	assert.Empty(t, broker.orders, "second buy must not reach the broker")
	require.Len(t, ledger.toolCalls, 1)
	assert.Equal(t, types.ActionBuy, ledger.toolCalls[0].Type)
	assert.Contains(t, ledger.toolCalls[0].Error, "position")

	// The prompt sees the intraday position too.
	assert.Contains(t, o.prompt, "ONGC NSE")
}

func TestRunCycle_SellDrawsOnIntradayPosition(t *testing.T) {
	t.Setenv("AGENT_LOG_DIR", t.TempDir())

	broker := &orderRecorder{
		margins:      types.Margins{AvailableCash: 400, LiveBalance: 500},
		candles:      testCandles(30),
		netPositions: []types.Position{{Symbol: "ONGC", Exchange: "NSE", Quantity: 5}},
	}
	o := &scriptedOracle{result: types.OracleResult{
		Call: &types.FunctionCall{
			Name: oracle.ToolSellStock,
			Args: map[string]any{"exchange": "NSE", "symbol": "ONGC", "quantity": float64(5)},
		},
	}}
	ledger := newMemLedger()

	eng := New(testConfig(), broker, o, ledger)
	require.NoError(t, eng.RunCycle(context.Background()))

	require.Len(t, broker.orders, 1)
	assert.Equal(t, "SELL", broker.orders[0].Side)
	require.Len(t, ledger.toolCalls, 1)
	assert.Empty(t, ledger.toolCalls[0].Error)
}

func TestRunCycle_OrderFailureStillAudited(t *testing.T) {
	t.Setenv("AGENT_LOG_DIR", t.TempDir())

	broker := &orderRecorder{
		margins:  types.Margins{AvailableCash: 500, LiveBalance: 500},
		candles:  testCandles(30),
		orderErr: errors.New("order rejected by RMS"),
	}
	o := &scriptedOracle{result: types.OracleResult{
		Call: &types.FunctionCall{
			Name: oracle.ToolBuyStock,
			Args: map[string]any{"exchange": "NSE", "symbol": "ONGC", "quantity": float64(5)},
		},
	}}
	ledger := newMemLedger()

	eng := New(testConfig(), broker, o, ledger)
	require.NoError(t, eng.RunCycle(context.Background()))

	require.Len(t, ledger.toolCalls, 1)
	assert.Equal(t, types.ActionBuy, ledger.toolCalls[0].Type)
	assert.Contains(t, ledger.toolCalls[0].Error, "order rejected by RMS")
	assert.Empty(t, ledger.toolCalls[0].OrderID)
}

func TestSnapshot(t *testing.T) {
	broker := &orderRecorder{margins: types.Margins{AvailableCash: 480, LiveBalance: 512.35}}
	ledger := newMemLedger()

	eng := New(testConfig(), broker, &scriptedOracle{}, ledger)
	require.NoError(t, eng.Snapshot(context.Background()))

	require.Len(t, ledger.snapshots, 1)
	assert.Equal(t, 512.35, ledger.snapshots[0])
}

func TestSnapshot_MarginsFailureClassified(t *testing.T) {
	broker := &orderRecorder{marginsErr: errors.New("token expired")}
	ledger := newMemLedger()

	eng := New(testConfig(), broker, &scriptedOracle{}, ledger)
	err := eng.Snapshot(context.Background())

	require.Error(t, err)
	var bce *types.BrokerCallError
	require.ErrorAs(t, err, &bce)
	assert.Equal(t, "Margins", bce.Op)
	assert.Empty(t, ledger.snapshots)
}
