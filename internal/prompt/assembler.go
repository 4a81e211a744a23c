// Package prompt renders the policy prompt from live account state and
// indicator blocks. Assembly is a pure function: identical inputs produce
// a byte-identical prompt.
package prompt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Official-Krish/ai-trading-zerodha/internal/indicators"
	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

// TimeframeBlock holds one timeframe's derived series for an instrument.
type TimeframeBlock struct {
	Label string // "1m", "3m", "5m"
	Data  indicators.Result
}

// InstrumentBlock groups the timeframe blocks of one instrument, in the
// order they should appear in the prompt.
type InstrumentBlock struct {
	Instrument types.Instrument
	Frames     []TimeframeBlock
}

// Inputs carries everything the template needs. Zero values render as
// explicit defaults (₹0.00, empty positions), never as blanks.
type Inputs struct {
	InvocationCount int64
	OpenPositions   []types.Position
	Blocks          []InstrumentBlock
	AvailableCash   float64
	AccountValue    float64
}

// Assemble substitutes every placeholder in template. It fails with
// ErrTemplate when a placeholder survives substitution.
func Assemble(template string, in Inputs) (string, error) {
	positionsJSON, err := json.Marshal(in.OpenPositions)
	if err != nil {
		return "", fmt.Errorf("marshal positions: %w", err)
	}

	out := template
	out = strings.ReplaceAll(out, "{{INVOKATION_TIMES}}", strconv.FormatInt(in.InvocationCount, 10))
	out = strings.ReplaceAll(out, "{{OPEN_POSITIONS}}", renderPositions(in.OpenPositions))
	out = strings.ReplaceAll(out, "{{ALL_INDICATOR_DATA}}", renderIndicatorData(in.Blocks))
	out = strings.ReplaceAll(out, "{{AVAILABLE_CASH_FOR_TRADING}}", rupees(in.AvailableCash))
	out = strings.ReplaceAll(out, "{{CURRENT_ACCOUNT_VALUE}}", rupees(in.AccountValue))
	out = strings.ReplaceAll(out, "{{CURRENT_ACCOUNT_POSITIONS}}", string(positionsJSON))

	if idx := strings.Index(out, "{{"); idx >= 0 {
		end := strings.Index(out[idx:], "}}")
		leftover := out[idx:]
		if end >= 0 {
			leftover = out[idx : idx+end+2]
		}
		return "", fmt.Errorf("%w: %s", types.ErrTemplate, leftover)
	}
	return out, nil
}

// renderPositions formats holdings as "SYMBOL EXCHANGE PNL" pairs.
func renderPositions(ps []types.Position) string {
	if len(ps) == 0 {
		return "none"
	}
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = fmt.Sprintf("%s %s %s", p.Symbol, p.Exchange, formatFloat(p.PnL))
	}
	return strings.Join(parts, ", ")
}

// renderIndicatorData emits one labeled block per instrument, in the
// configured universe order, so the model can tell series apart.
func renderIndicatorData(blocks []InstrumentBlock) string {
	var b strings.Builder
	for _, blk := range blocks {
		fmt.Fprintf(&b, "\nMARKET - %s | %s\n", blk.Instrument.Exchange, blk.Instrument.Symbol)
		for _, f := range blk.Frames {
			fmt.Fprintf(&b, "\n%s candles (oldest → latest):\n", f.Label)
			fmt.Fprintf(&b, "Mid prices - [%s]\n", joinFloats(f.Data.MidPrices))
			fmt.Fprintf(&b, "EMA20 - [%s]\n", joinFloats(f.Data.EMA20))
			fmt.Fprintf(&b, "MACD - [%s]\n", joinFloats(f.Data.MACD))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func joinFloats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = formatFloat(x)
	}
	return strings.Join(parts, ",")
}

// formatFloat uses the shortest decimal representation, matching how the
// series values were rounded upstream.
func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func rupees(x float64) string {
	return "₹" + strconv.FormatFloat(x, 'f', 2, 64)
}
