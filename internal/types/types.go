package types

import "time"

// Candle is one OHLCV bucket, oldest first in any series.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
}

// Instrument identifies one tradable stock in the configured universe.
type Instrument struct {
	Exchange        string `yaml:"exchange" json:"exchange"`
	Symbol          string `yaml:"symbol" json:"symbol"`
	InstrumentToken int    `yaml:"instrument_token" json:"instrumentToken"`
}

// Position is an open holding as reported by the broker.
type Position struct {
	Symbol   string  `json:"symbol"`
	Exchange string  `json:"exchange"`
	Quantity int     `json:"quantity"`
	PnL      float64 `json:"pnl"`
}

// Margins is the cash side of the account, read fresh every cycle.
type Margins struct {
	AvailableCash float64
	LiveBalance   float64
}

// AccountState is the broker-reported truth used for invariant checks.
// It is never cached across cycles.
type AccountState struct {
	AvailableCash float64
	LiveBalance   float64
	OpenPositions []Position
}

// ActionKind enumerates the tool-call types the policy model may request.
// The values double as the ledger's tool_call_type column.
type ActionKind string

const (
	ActionBuy     ActionKind = "BUY_STOCK"
	ActionSell    ActionKind = "SELL_STOCK"
	ActionHold    ActionKind = "HOLD_STOCK"
	ActionNoIdeal ActionKind = "NO_IDEA_STOCK"

	// ActionUnknown is never dispatched. It is recorded in the ledger when
	// the model named a tool we do not recognise, so the failed attempt
	// stays auditable.
	ActionUnknown ActionKind = "UNKNOWN"
)

// Action is the single decision produced per cycle.
// Exchange, Symbol and Quantity are only set for buy and sell.
type Action struct {
	Kind     ActionKind
	Exchange string
	Symbol   string
	Quantity int

	// Implicit marks a Hold synthesized from a model response that
	// contained no function call at all.
	Implicit bool
}

// FunctionCall is a raw tool call as returned by the policy oracle,
// before schema validation.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// OracleResult is the parsed outcome of one policy invocation.
type OracleResult struct {
	// Rationale is the model's reasoning ("thought" parts), persisted
	// before the action is dispatched.
	Rationale string
	// Text is any non-thought text the model produced.
	Text string
	// Call is the first function call in the response, nil when the model
	// returned none (implicit hold).
	Call *FunctionCall
	// ExtraCalls counts function calls beyond the first. They are ignored
	// by policy but surfaced for audit.
	ExtraCalls int
}

// OrderReq describes one broker order. Product is always intraday (MIS).
type OrderReq struct {
	Exchange  string
	Symbol    string
	Side      string // BUY or SELL
	Quantity  int
	OrderType string // MARKET or LIMIT
}

// OrderResp is the broker's acknowledgement of a placed order.
type OrderResp struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// ToolCallRecord is one append-only audit row written after dispatch.
type ToolCallRecord struct {
	InvocationID int64
	Type         ActionKind
	Metadata     string
	OrderID      string
	Error        string
}

// ModelRow mirrors the ledger's models table.
type ModelRow struct {
	ID              int64
	Name            string
	InvocationCount int64
}

// ToolCallView is the dashboard-facing shape of a tool call.
type ToolCallView struct {
	ToolCallType string    `json:"toolCallType"`
	Metadata     string    `json:"metadata"`
	OrderID      string    `json:"orderId,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// InvocationView is one invocation with its nested tool calls,
// newest invocation first, tool calls oldest first.
type InvocationView struct {
	ID        int64          `json:"id"`
	ModelName string         `json:"modelName"`
	Response  string         `json:"response"`
	CreatedAt time.Time      `json:"createdAt"`
	ToolCalls []ToolCallView `json:"toolCalls"`
}

// SnapshotView is one portfolio-value sample for the performance series.
type SnapshotView struct {
	ModelName       string    `json:"modelName"`
	InvocationCount int64     `json:"invocationCount"`
	NetValue        float64   `json:"netPortfolio"`
	CreatedAt       time.Time `json:"createdAt"`
}
