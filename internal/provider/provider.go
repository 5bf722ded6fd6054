package provider

import (
	"context"
	"errors"
	"time"
)

// Quote is the normalized shape returned by all providers.
// Pointer fields are nil when the upstream omitted the value; field
// presence is never guaranteed by any provider.
type Quote struct {
	Symbol        string
	Name          string
	Price         *float64
	PreviousClose *float64
	Change        *float64
	ChangePercent *float64
	Volume        *int64
	MarketCap     *float64
	PERatio       *float64
	DividendYield *float64
	YearHigh      *float64
	YearLow       *float64
	Sector        string
	Industry      string
	Source        string
}

// Candle is one daily bar of a historical series. Date carries the
// calendar day only; any time-of-day from upstream is discarded.
type Candle struct {
	Date   time.Time
	Open   *float64
	High   *float64
	Low    *float64
	Close  *float64
	Volume *int64
}

// Sentinel errors shared by all providers. Callers classify these into
// their own error taxonomy; anything else from a provider is treated as
// an upstream transport failure.
var (
	// ErrNoData means a well-formed response carried an empty result set.
	ErrNoData = errors.New("no data for symbol")
	// ErrMalformed means a 2xx response could not be decoded or lacked
	// required fields.
	ErrMalformed = errors.New("malformed upstream response")
)

// QuoteFetcher retrieves a point-in-time quote for one provider symbol.
type QuoteFetcher interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
}

// HistoryFetcher retrieves daily bars for a provider symbol over an
// enumerated period token ("1mo", "3mo", "6mo", "1y"). Order of the
// returned candles is provider-defined; callers normalize.
type HistoryFetcher interface {
	Name() string
	FetchHistory(ctx context.Context, symbol string, period string) ([]Candle, error)
}
