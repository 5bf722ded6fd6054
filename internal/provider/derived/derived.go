// Package derived implements the degraded quote strategy at the end of
// the fallback chain: when no quote endpoint is usable, the current
// price is taken from the most recent daily close and the previous
// close from the one before it.
package derived

import (
	"context"
	"fmt"
	"sort"

	"stockdesk/internal/provider"
)

// Fetcher adapts any HistoryFetcher into a QuoteFetcher.
type Fetcher struct {
	History provider.HistoryFetcher
	// Window is the period token requested for the short window.
	// Defaults to "1mo".
	Window string
}

func New(history provider.HistoryFetcher) *Fetcher {
	return &Fetcher{History: history, Window: "1mo"}
}

func (f *Fetcher) Name() string {
	return f.History.Name() + "-derived"
}

func (f *Fetcher) FetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	window := f.Window
	if window == "" {
		window = "1mo"
	}
	candles, err := f.History.FetchHistory(ctx, symbol, window)
	if err != nil {
		return provider.Quote{}, err
	}
	// Keep only bars with a close, oldest first.
	closed := candles[:0:0]
	for _, c := range candles {
		if c.Close != nil {
			closed = append(closed, c)
		}
	}
	if len(closed) == 0 {
		return provider.Quote{}, fmt.Errorf("derived quote %s: %w", symbol, provider.ErrNoData)
	}
	sort.Slice(closed, func(i, j int) bool { return closed[i].Date.Before(closed[j].Date) })

	last := closed[len(closed)-1]
	q := provider.Quote{
		Symbol: symbol,
		Price:  last.Close,
		Volume: last.Volume,
		Source: f.Name(),
	}
	if len(closed) >= 2 {
		q.PreviousClose = closed[len(closed)-2].Close
	}
	return q, nil
}
