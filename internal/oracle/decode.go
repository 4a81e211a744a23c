// Package oracle defines the tool vocabulary shared by policy providers
// and decodes raw tool calls into typed actions.
package oracle

import (
	"fmt"
	"math"

	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

// Tool names the policy model may call.
const (
	ToolBuyStock     = "buy_stock"
	ToolSellStock    = "sell_stock"
	ToolHoldStock    = "hold_stock"
	ToolNoIdealStock = "no_ideal_stock"
)

// DecodeAction validates a raw function call against the declared tool
// schema and returns the typed action. A nil call is the documented
// implicit hold: the model answered in prose without choosing a tool.
func DecodeAction(call *types.FunctionCall) (types.Action, error) {
	if call == nil {
		return types.Action{Kind: types.ActionHold, Implicit: true}, nil
	}
	switch call.Name {
	case ToolBuyStock:
		return decodeTrade(types.ActionBuy, call)
	case ToolSellStock:
		return decodeTrade(types.ActionSell, call)
	case ToolHoldStock:
		return types.Action{Kind: types.ActionHold}, nil
	case ToolNoIdealStock:
		return types.Action{Kind: types.ActionNoIdeal}, nil
	default:
		return types.Action{}, fmt.Errorf("%w: %q", types.ErrUnrecognizedAction, call.Name)
	}
}

// decodeTrade checks the buy/sell argument schema strictly: exactly the
// three declared fields, quantity a positive whole number. Raw argument
// maps are never trusted past this point.
func decodeTrade(kind types.ActionKind, call *types.FunctionCall) (types.Action, error) {
	for k := range call.Args {
		switch k {
		case "exchange", "symbol", "quantity":
		default:
			return types.Action{}, fmt.Errorf("%w: %s: unexpected field %q", types.ErrInvalidActionArgs, call.Name, k)
		}
	}

	exchange, ok := call.Args["exchange"].(string)
	if !ok || exchange == "" {
		return types.Action{}, fmt.Errorf("%w: %s: missing exchange", types.ErrInvalidActionArgs, call.Name)
	}
	symbol, ok := call.Args["symbol"].(string)
	if !ok || symbol == "" {
		return types.Action{}, fmt.Errorf("%w: %s: missing symbol", types.ErrInvalidActionArgs, call.Name)
	}
	qty, ok := call.Args["quantity"].(float64)
	if !ok {
		return types.Action{}, fmt.Errorf("%w: %s: missing quantity", types.ErrInvalidActionArgs, call.Name)
	}
	if qty <= 0 || qty != math.Trunc(qty) {
		return types.Action{}, fmt.Errorf("%w: %s: quantity %v is not a positive integer", types.ErrInvalidActionArgs, call.Name, qty)
	}

	return types.Action{
		Kind:     kind,
		Exchange: exchange,
		Symbol:   symbol,
		Quantity: int(qty),
	}, nil
}
