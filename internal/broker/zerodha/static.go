package zerodha

import (
	"math/rand"
	"time"

	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

// Static data source: synthetic account state and candles so the agent
// can run end to end without broker credentials.

const staticStartingCash = 500.0

func (z *Zerodha) staticMargins() types.Margins {
	return types.Margins{
		AvailableCash: staticStartingCash,
		LiveBalance:   staticStartingCash,
	}
}

// staticCandles generates a gently drifting random walk at the requested
// interval spacing across [from, to].
func (z *Zerodha) staticCandles(interval string, from, to time.Time) []types.Candle {
	step := intervalDuration(interval)
	n := int(to.Sub(from) / step)
	if n <= 0 {
		n = 1
	}

	cs := make([]types.Candle, 0, n)
	price := 250.0
	for i := 0; i < n; i++ {
		price += (rand.Float64() - 0.5) * 2
		high := price + rand.Float64()*1.5
		low := price - rand.Float64()*1.5
		cs = append(cs, types.Candle{
			OpenTime: from.Add(time.Duration(i) * step),
			Open:     price - 0.25,
			High:     high,
			Low:      low,
			Close:    price,
			Volume:   int64(rand.Intn(10000)),
		})
	}
	return cs
}

func intervalDuration(interval string) time.Duration {
	switch interval {
	case "3minute":
		return 3 * time.Minute
	case "5minute":
		return 5 * time.Minute
	default:
		return time.Minute
	}
}
