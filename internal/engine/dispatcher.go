package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Official-Krish/ai-trading-zerodha/internal/interfaces"
	"github.com/Official-Krish/ai-trading-zerodha/internal/logger"
	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

// Dispatch metadata recorded for the non-trading actions.
const (
	holdMetadata    = "Holding current positions as per agent's decision."
	noIdealMetadata = "Agent decided there are no ideal stocks to trade at the moment."
)

// DispatchResult is the audit-ready outcome of one dispatched action.
type DispatchResult struct {
	Type     types.ActionKind
	Metadata string
	OrderID  string
	Err      error
}

// Dispatcher enforces the account invariants and routes validated actions
// to the broker. State is read fresh from account every call; the
// dispatcher keeps nothing between cycles.
type Dispatcher struct {
	broker           interfaces.Broker
	allowedExchanges []string
	containsMatch    bool
}

// NewDispatcher builds a dispatcher over broker. allowedExchanges is the
// exchange allow-list for buys; containsMatch selects substring matching
// against the list instead of exact codes.
func NewDispatcher(broker interfaces.Broker, allowedExchanges []string, containsMatch bool) *Dispatcher {
	return &Dispatcher{broker: broker, allowedExchanges: allowedExchanges, containsMatch: containsMatch}
}

// Dispatch executes one action against the broker, after checking the
// invariants the model cannot be trusted with: at most one open position,
// allow-listed exchanges, and never selling more than is held. Validation
// failures and broker failures are both returned in the result, never
// panicked or swallowed.
func (d *Dispatcher) Dispatch(ctx context.Context, action types.Action, account types.AccountState) DispatchResult {
	switch action.Kind {
	case types.ActionBuy:
		return d.dispatchBuy(ctx, action, account)
	case types.ActionSell:
		return d.dispatchSell(ctx, action, account)
	case types.ActionHold:
		return DispatchResult{Type: types.ActionHold, Metadata: holdMetadata}
	case types.ActionNoIdeal:
		return DispatchResult{Type: types.ActionNoIdeal, Metadata: noIdealMetadata}
	default:
		return DispatchResult{
			Type: types.ActionUnknown,
			Err:  fmt.Errorf("%w: %q", types.ErrUnrecognizedAction, action.Kind),
		}
	}
}

func (d *Dispatcher) dispatchBuy(ctx context.Context, action types.Action, account types.AccountState) DispatchResult {
	res := DispatchResult{Type: types.ActionBuy, Metadata: tradeMetadata(action)}

	if len(account.OpenPositions) > 0 {
		res.Err = fmt.Errorf("buy %s rejected: %d position(s) already open", action.Symbol, len(account.OpenPositions))
		return res
	}
	if !d.exchangeAllowed(action.Exchange) {
		res.Err = fmt.Errorf("%w: %q", types.ErrInvalidExchange, action.Exchange)
		return res
	}
	if action.Quantity <= 0 {
		res.Err = fmt.Errorf("%w: quantity %d", types.ErrInvalidActionArgs, action.Quantity)
		return res
	}

	resp, err := d.broker.PlaceOrder(ctx, types.OrderReq{
		Exchange: action.Exchange,
		Symbol:   action.Symbol,
		Side:     "BUY",
		Quantity: action.Quantity,
	})
	if err != nil {
		res.Err = &types.BrokerCallError{Op: "PlaceOrder", Err: err}
		return res
	}
	res.OrderID = resp.OrderID
	return res
}

func (d *Dispatcher) dispatchSell(ctx context.Context, action types.Action, account types.AccountState) DispatchResult {
	res := DispatchResult{Type: types.ActionSell, Metadata: tradeMetadata(action)}

	held := 0
	for _, p := range account.OpenPositions {
		if p.Symbol == action.Symbol {
			held += p.Quantity
		}
	}
	if held < action.Quantity {
		res.Err = fmt.Errorf("%w: sell %d %s but holding %d", types.ErrInsufficientHoldings, action.Quantity, action.Symbol, held)
		return res
	}
	if action.Quantity <= 0 {
		res.Err = fmt.Errorf("%w: quantity %d", types.ErrInvalidActionArgs, action.Quantity)
		return res
	}

	resp, err := d.broker.PlaceOrder(ctx, types.OrderReq{
		Exchange: action.Exchange,
		Symbol:   action.Symbol,
		Side:     "SELL",
		Quantity: action.Quantity,
	})
	if err != nil {
		res.Err = &types.BrokerCallError{Op: "PlaceOrder", Err: err}
		return res
	}
	res.OrderID = resp.OrderID
	return res
}

// exchangeAllowed validates the requested exchange against the allow-list.
// Contains mode accepts any code with an allowed exchange as a substring
// (so "XNSE" passes); exact mode requires the code itself.
func (d *Dispatcher) exchangeAllowed(exchange string) bool {
	for _, allowed := range d.allowedExchanges {
		if d.containsMatch {
			if strings.Contains(exchange, allowed) {
				return true
			}
		} else if exchange == allowed {
			return true
		}
	}
	return false
}

// tradeMetadata serialises the trade arguments for the audit row.
func tradeMetadata(action types.Action) string {
	b, err := json.Marshal(map[string]any{
		"exchange": action.Exchange,
		"symbol":   action.Symbol,
		"quantity": action.Quantity,
	})
	if err != nil {
		logger.Warn(context.Background(), "Failed to marshal trade metadata", "symbol", action.Symbol)
		return ""
	}
	return string(b)
}
