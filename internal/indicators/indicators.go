// Package indicators derives the technical signals fed to the policy
// prompt. All functions are pure; no I/O.
package indicators

import (
	"fmt"
	"math"

	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

const (
	emaPeriod      = 20
	macdFastPeriod = 12
	macdSlowPeriod = 26

	// Each output series is cut to its most recent points to bound the
	// prompt size, and rounded to 3 decimals.
	outputPoints  = 10
	roundDecimals = 3
)

// Result holds the derived series for one candle set, oldest first,
// truncated and rounded for prompt use.
type Result struct {
	MidPrices []float64
	EMA20     []float64
	MACD      []float64
}

// MidPrices maps candles to (high+low)/2, oldest first.
func MidPrices(candles []types.Candle) ([]float64, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("mid prices: %w", types.ErrInsufficientData)
	}
	mids := make([]float64, len(candles))
	for i, c := range candles {
		mids[i] = (c.High + c.Low) / 2
	}
	return mids, nil
}

// EMA computes an exponential moving average over series with smoothing
// factor 2/(period+1), seeded with the first value. The output has the
// same length as the input.
func EMA(series []float64, period int) []float64 {
	if len(series) == 0 || period <= 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(series))
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = series[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// MACD is the fast EMA minus the slow EMA of series (12/26 periods).
func MACD(series []float64) []float64 {
	fast := EMA(series, macdFastPeriod)
	slow := EMA(series, macdSlowPeriod)
	out := make([]float64, len(series))
	for i := range series {
		out[i] = fast[i] - slow[i]
	}
	return out
}

// Compute derives mid prices, EMA20 and MACD from a candle series.
// Returns ErrInsufficientData on empty input; it never returns empty
// series that could be misread as a flat signal.
func Compute(candles []types.Candle) (Result, error) {
	mids, err := MidPrices(candles)
	if err != nil {
		return Result{}, err
	}
	return Result{
		MidPrices: shape(mids),
		EMA20:     shape(EMA(mids, emaPeriod)),
		MACD:      shape(MACD(mids)),
	}, nil
}

// shape truncates a series to the most recent outputPoints values and
// rounds each to roundDecimals.
func shape(series []float64) []float64 {
	if len(series) > outputPoints {
		series = series[len(series)-outputPoints:]
	}
	out := make([]float64, len(series))
	for i, v := range series {
		out[i] = round(v, roundDecimals)
	}
	return out
}

func round(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}
