package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the decision pipeline. Callers classify failures
// with errors.Is; validation failures abort only the dispatch step while
// call failures abort the whole cycle (fail-closed).
var (
	// ErrInsufficientData: a candle series was too short to derive indicators.
	ErrInsufficientData = errors.New("insufficient candle data")

	// ErrTemplate: a prompt placeholder was left unresolved.
	ErrTemplate = errors.New("unresolved prompt placeholder")

	// ErrUnrecognizedAction: the model named a tool outside the declared set.
	ErrUnrecognizedAction = errors.New("unrecognized tool call")

	// ErrInvalidActionArgs: a tool call had missing or malformed arguments.
	ErrInvalidActionArgs = errors.New("invalid tool call arguments")

	// ErrInvalidExchange: the requested exchange is not in the allow-list.
	ErrInvalidExchange = errors.New("exchange not allowed")

	// ErrInsufficientHoldings: a sell exceeded the currently held quantity.
	ErrInsufficientHoldings = errors.New("insufficient holdings")
)

// BrokerCallError wraps a failed broker operation. Order placement
// failures are caught and recorded, never crash the scheduler.
type BrokerCallError struct {
	Op  string
	Err error
}

func (e *BrokerCallError) Error() string {
	return fmt.Sprintf("broker %s: %v", e.Op, e.Err)
}

func (e *BrokerCallError) Unwrap() error { return e.Err }

// OracleCallError wraps a failed policy invocation. It aborts the cycle
// before any order is considered.
type OracleCallError struct {
	Err error
}

func (e *OracleCallError) Error() string {
	return fmt.Sprintf("oracle call: %v", e.Err)
}

func (e *OracleCallError) Unwrap() error { return e.Err }
