// Package yahoo fetches quotes and daily charts from Yahoo Finance via
// piquette/finance-go. It is the secondary source behind FMP: same
// normalized records, different upstream.
package yahoo

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"

	"stockdesk/internal/provider"
)

// periodWindow maps period tokens to a lookback from now. The chart
// endpoint takes explicit bounds, not tokens.
var periodWindow = map[string]time.Duration{
	"1mo": 31 * 24 * time.Hour,
	"3mo": 92 * 24 * time.Hour,
	"6mo": 183 * 24 * time.Hour,
	"1y":  366 * 24 * time.Hour,
}

type Client struct{}

func New() *Client { return &Client{} }

func (c *Client) Name() string { return "Yahoo" }

// FetchQuote retrieves a regular-session quote. finance-go has no
// context support; the surrounding deadline is honored between calls
// only.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	if err := ctx.Err(); err != nil {
		return provider.Quote{}, err
	}
	q, err := equity.Get(symbol)
	if err != nil {
		return provider.Quote{}, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}
	if q == nil || q.RegularMarketPrice == 0 {
		return provider.Quote{}, fmt.Errorf("yahoo quote %s: %w", symbol, provider.ErrNoData)
	}
	out := provider.Quote{
		Symbol:        q.Symbol,
		Name:          q.ShortName,
		Price:         ptr(q.RegularMarketPrice),
		PreviousClose: nonZero(q.RegularMarketPreviousClose),
		Change:        ptr(q.RegularMarketChange),
		ChangePercent: ptr(q.RegularMarketChangePercent),
		// Yahoo reports zero for values it does not carry; zero is
		// indistinguishable from absent for these, so treat it as absent.
		PERatio:       nonZero(q.TrailingPE),
		DividendYield: nonZero(q.TrailingAnnualDividendYield),
		YearHigh:      nonZero(q.FiftyTwoWeekHigh),
		YearLow:       nonZero(q.FiftyTwoWeekLow),
		Source:        c.Name(),
	}
	if q.RegularMarketVolume > 0 {
		v := int64(q.RegularMarketVolume)
		out.Volume = &v
	}
	if q.MarketCap > 0 {
		m := float64(q.MarketCap)
		out.MarketCap = &m
	}
	return out, nil
}

// FetchHistory retrieves daily bars from the chart endpoint.
func (c *Client) FetchHistory(ctx context.Context, symbol string, period string) ([]provider.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	window, ok := periodWindow[period]
	if !ok {
		window = periodWindow["1mo"]
	}
	end := time.Now()
	start := end.Add(-window)
	iter := chart.Get(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})
	var candles []provider.Candle
	for iter.Next() {
		b := iter.Bar()
		day := time.Unix(int64(b.Timestamp), 0).UTC().Truncate(24 * time.Hour)
		open, _ := b.Open.Float64()
		high, _ := b.High.Float64()
		low, _ := b.Low.Float64()
		closing, _ := b.Close.Float64()
		vol := int64(b.Volume)
		candles = append(candles, provider.Candle{
			Date:   day,
			Open:   &open,
			High:   &high,
			Low:    &low,
			Close:  &closing,
			Volume: &vol,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	return candles, nil
}

func ptr(v float64) *float64 { return &v }

func nonZero(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}
