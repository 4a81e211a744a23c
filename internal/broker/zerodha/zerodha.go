// Package zerodha implements the Broker capability against the Zerodha
// Kite Connect API, with simulated fallbacks for DRY_RUN / STATIC modes.
package zerodha

import (
	"context"
	"errors"
	"fmt"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"github.com/Official-Krish/ai-trading-zerodha/internal/interfaces"
	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

type Params struct {
	Mode        string // DRY_RUN | LIVE: controls order placement
	DataSource  string // STATIC | LIVE: controls reads
	APIKey      string
	AccessToken string
	CallTimeout time.Duration
}

type Zerodha struct {
	p  Params
	kc *kiteconnect.Client
}

var _ interfaces.Broker = (*Zerodha)(nil)

func NewZerodha(p Params) *Zerodha {
	z := &Zerodha{p: p}
	if p.APIKey != "" && p.AccessToken != "" {
		kc := kiteconnect.New(p.APIKey)
		kc.SetAccessToken(p.AccessToken)
		if p.CallTimeout > 0 {
			kc.SetTimeout(p.CallTimeout)
		}
		z.kc = kc
	}
	return z
}

func (z *Zerodha) liveReads() bool {
	return z.p.DataSource == "LIVE" && z.kc != nil
}

func (z *Zerodha) Margins(ctx context.Context) (types.Margins, error) {
	if !z.liveReads() {
		return z.staticMargins(), nil
	}
	m, err := z.kc.GetUserMargins()
	if err != nil {
		return types.Margins{}, fmt.Errorf("get margins: %w", err)
	}
	return types.Margins{
		AvailableCash: m.Equity.Available.Cash,
		LiveBalance:   m.Equity.Available.LiveBalance,
	}, nil
}

func (z *Zerodha) Holdings(ctx context.Context) ([]types.Position, error) {
	if !z.liveReads() {
		return nil, nil
	}
	hs, err := z.kc.GetHoldings()
	if err != nil {
		return nil, fmt.Errorf("get holdings: %w", err)
	}
	out := make([]types.Position, 0, len(hs))
	for _, h := range hs {
		out = append(out, types.Position{
			Symbol:   h.Tradingsymbol,
			Exchange: h.Exchange,
			Quantity: h.Quantity,
			PnL:      h.PnL,
		})
	}
	return out, nil
}

func (z *Zerodha) NetPositions(ctx context.Context) ([]types.Position, error) {
	if !z.liveReads() {
		return nil, nil
	}
	ps, err := z.kc.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	out := make([]types.Position, 0, len(ps.Net))
	for _, p := range ps.Net {
		out = append(out, types.Position{
			Symbol:   p.Tradingsymbol,
			Exchange: p.Exchange,
			Quantity: p.Quantity,
			PnL:      p.PnL,
		})
	}
	return out, nil
}

func (z *Zerodha) HistoricalCandles(ctx context.Context, instrumentToken int, interval string, from, to time.Time) ([]types.Candle, error) {
	if !z.liveReads() {
		return z.staticCandles(interval, from, to), nil
	}
	data, err := z.kc.GetHistoricalData(instrumentToken, interval, from, to, false, false)
	if err != nil {
		return nil, fmt.Errorf("get historical data token=%d interval=%s: %w", instrumentToken, interval, err)
	}
	out := make([]types.Candle, 0, len(data))
	for _, d := range data {
		out = append(out, types.Candle{
			OpenTime: d.Date.Time,
			Open:     d.Open,
			High:     d.High,
			Low:      d.Low,
			Close:    d.Close,
			Volume:   int64(d.Volume),
		})
	}
	return out, nil
}

func (z *Zerodha) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	if z.p.Mode == "DRY_RUN" {
		return types.OrderResp{
			OrderID: fmt.Sprintf("SIM-%d", time.Now().UnixNano()),
			Status:  "SIMULATED",
		}, nil
	}
	if z.kc == nil {
		return types.OrderResp{}, errors.New("missing API key/access token")
	}

	orderType := req.OrderType
	if orderType == "" {
		orderType = kiteconnect.OrderTypeMarket
	}

	resp, err := z.kc.PlaceOrder(kiteconnect.VarietyRegular, kiteconnect.OrderParams{
		Exchange:        req.Exchange,
		Tradingsymbol:   req.Symbol,
		TransactionType: req.Side,
		Quantity:        req.Quantity,
		OrderType:       orderType,
		Product:         kiteconnect.ProductMIS,
	})
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("place order %s %s %s x%d: %w",
			req.Side, req.Exchange, req.Symbol, req.Quantity, err)
	}
	return types.OrderResp{OrderID: resp.OrderID, Status: "PLACED"}, nil
}
