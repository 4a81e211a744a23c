package indicators

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

func constantCandles(n int, price float64) []types.Candle {
	now := time.Now()
	cs := make([]types.Candle, n)
	for i := range cs {
		cs[i] = types.Candle{
			OpenTime: now.Add(time.Duration(i-n) * time.Minute),
			Open:     price,
			High:     price,
			Low:      price,
			Close:    price,
			Volume:   100,
		}
	}
	return cs
}

func TestMidPrices(t *testing.T) {
	cs := []types.Candle{
		{High: 102, Low: 98},
		{High: 110, Low: 100},
	}
	mids, err := MidPrices(cs)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 105}, mids)
}

func TestMidPricesEmptyInput(t *testing.T) {
	_, err := MidPrices(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInsufficientData))
}

func TestEMAConvergesToConstant(t *testing.T) {
	series := make([]float64, 200)
	for i := range series {
		series[i] = 42.5
	}
	ema := EMA(series, 20)
	require.Len(t, ema, len(series))
	assert.InDelta(t, 42.5, ema[len(ema)-1], 1e-9)
}

func TestEMALagsIncreasingSeries(t *testing.T) {
	series := make([]float64, 100)
	for i := range series {
		series[i] = float64(i)
	}
	ema := EMA(series, 20)
	for i := 1; i < len(ema); i++ {
		assert.Greater(t, ema[i], ema[i-1], "EMA must be monotonically increasing at %d", i)
		assert.LessOrEqual(t, ema[i], series[i], "EMA must lag the raw series at %d", i)
	}
}

func TestMACDConvergesToZeroOnConstant(t *testing.T) {
	series := make([]float64, 300)
	for i := range series {
		series[i] = 250.0
	}
	macd := MACD(series)
	assert.InDelta(t, 0, macd[len(macd)-1], 1e-9)
}

func TestComputeTruncatesAndRounds(t *testing.T) {
	now := time.Now()
	cs := make([]types.Candle, 40)
	for i := range cs {
		p := 100 + float64(i)*0.33333
		cs[i] = types.Candle{OpenTime: now, High: p + 1, Low: p - 1, Close: p}
	}

	res, err := Compute(cs)
	require.NoError(t, err)

	assert.Len(t, res.MidPrices, 10)
	assert.Len(t, res.EMA20, 10)
	assert.Len(t, res.MACD, 10)

	for _, series := range [][]float64{res.MidPrices, res.EMA20, res.MACD} {
		for _, v := range series {
			scaled := v * 1000
			assert.InDelta(t, math.Round(scaled), scaled, 1e-6, "value %v not rounded to 3 decimals", v)
		}
	}
}

func TestComputeShortSeriesKeepsFullLength(t *testing.T) {
	res, err := Compute(constantCandles(4, 50))
	require.NoError(t, err)
	assert.Len(t, res.MidPrices, 4)
	assert.Len(t, res.MACD, 4)
}

func TestComputeEmptyInput(t *testing.T) {
	_, err := Compute(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInsufficientData))
}
