package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/require"

	"stockdesk/internal/provider"
)

// stubQuotes is a scripted quote strategy keyed by provider symbol. The
// mutex matters: the mover sweep fetches concurrently.
type stubQuotes struct {
	name   string
	quotes map[string]provider.Quote
	errs   map[string]error

	mu    sync.Mutex
	calls map[string]int
}

func (s *stubQuotes) Name() string { return s.name }

func (s *stubQuotes) FetchQuote(_ context.Context, symbol string) (provider.Quote, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[symbol]++
	s.mu.Unlock()
	if err, ok := s.errs[symbol]; ok {
		return provider.Quote{}, err
	}
	q, ok := s.quotes[symbol]
	if !ok {
		return provider.Quote{}, fmt.Errorf("quote %s: %w", symbol, provider.ErrNoData)
	}
	return q, nil
}

type stubHistory struct {
	name      string
	candles   []provider.Candle
	err       error
	gotPeriod string
	calls     int
}

func (s *stubHistory) Name() string { return s.name }

func (s *stubHistory) FetchHistory(_ context.Context, _ string, period string) ([]provider.Candle, error) {
	s.calls++
	s.gotPeriod = period
	if s.err != nil {
		return nil, s.err
	}
	return s.candles, nil
}

func fptr(v float64) *float64 { return &v }

func silentLogger() *log.Logger {
	return &log.Logger{Level: log.PanicLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}

func testConfig() Config {
	return Config{
		QuoteTTL:   time.Minute,
		HistoryTTL: time.Minute,
		MoversTTL:  time.Minute,
		SearchTTL:  time.Minute,
		Logger:     silentLogger(),
	}
}

func TestGetStockInfo_PrimaryStrategyWins(t *testing.T) {
	primary := &stubQuotes{name: "primary", quotes: map[string]provider.Quote{
		"RELIANCE.NS": {
			Symbol:        "RELIANCE.NS",
			Name:          "Reliance Industries",
			Price:         fptr(2500.456),
			PreviousClose: fptr(2450),
			Volume:        func() *int64 { v := int64(1200000); return &v }(),
			MarketCap:     fptr(1.69e13),
		},
	}}
	secondary := &stubQuotes{name: "secondary"}
	d := New(testConfig(), []provider.QuoteFetcher{primary, secondary}, nil)

	q, err := d.GetStockInfo(context.Background(), "reliance")
	require.NoError(t, err)
	require.Equal(t, "RELIANCE", q.Symbol)
	require.Equal(t, "Reliance Industries", q.CompanyName)
	require.Equal(t, FloatOf(2500.46), q.CurrentPrice)
	require.Equal(t, FloatOf(50.46), q.Change)
	require.Equal(t, FloatOf(2.06), q.ChangePercent)
	require.Equal(t, "₹1690000.00 Cr", q.MarketCapDisplay)
	require.Equal(t, "N/A", q.Sector)
	require.Empty(t, secondary.calls)
}

func TestGetStockInfo_FallsThroughToSecondary(t *testing.T) {
	primary := &stubQuotes{name: "primary", errs: map[string]error{
		"TCS.NS": errors.New("connection refused"),
	}}
	secondary := &stubQuotes{name: "secondary", quotes: map[string]provider.Quote{
		"TCS.NS": {Price: fptr(3900), PreviousClose: fptr(4000), Source: "secondary"},
	}}
	d := New(testConfig(), []provider.QuoteFetcher{primary, secondary}, nil)

	q, err := d.GetStockInfo(context.Background(), "TCS")
	require.NoError(t, err)
	require.Equal(t, "secondary", q.Source)
	require.Equal(t, FloatOf(-100), q.Change)
	require.Equal(t, FloatOf(-2.5), q.ChangePercent)
}

func TestGetStockInfo_UnusablePriceFallsThrough(t *testing.T) {
	// A 2xx answer without a price is as useless as an error.
	primary := &stubQuotes{name: "primary", quotes: map[string]provider.Quote{
		"TCS.NS": {Name: "Tata Consultancy"},
	}}
	secondary := &stubQuotes{name: "secondary", quotes: map[string]provider.Quote{
		"TCS.NS": {Price: fptr(3900), Source: "secondary"},
	}}
	d := New(testConfig(), []provider.QuoteFetcher{primary, secondary}, nil)

	q, err := d.GetStockInfo(context.Background(), "TCS")
	require.NoError(t, err)
	require.Equal(t, "secondary", q.Source)
}

func TestGetStockInfo_AllStrategiesFail(t *testing.T) {
	primary := &stubQuotes{name: "primary", errs: map[string]error{"TCS.NS": errors.New("boom")}}
	d := New(testConfig(), []provider.QuoteFetcher{primary}, nil)

	_, err := d.GetStockInfo(context.Background(), "TCS")
	require.Error(t, err)
	require.Equal(t, KindUpstreamUnavailable, KindOf(err))
	require.Contains(t, err.Error(), "TCS")
}

func TestGetStockInfo_EmptyTickerIsInvalidInput(t *testing.T) {
	d := New(testConfig(), []provider.QuoteFetcher{&stubQuotes{name: "p"}}, nil)
	_, err := d.GetStockInfo(context.Background(), "   ")
	require.Error(t, err)
	require.Equal(t, KindInvalidInput, KindOf(err))
}

func TestGetStockInfo_RepeatLookupsHitCache(t *testing.T) {
	primary := &stubQuotes{name: "primary", quotes: map[string]provider.Quote{
		"TCS.NS": {Price: fptr(3900)},
	}}
	d := New(testConfig(), []provider.QuoteFetcher{primary}, nil)

	_, err := d.GetStockInfo(context.Background(), "TCS")
	require.NoError(t, err)
	_, err = d.GetStockInfo(context.Background(), "tcs")
	require.NoError(t, err)
	require.Equal(t, 1, primary.calls["TCS.NS"])
}

func TestGetStockInfo_NoPercentOnZeroOrMissingPreviousClose(t *testing.T) {
	primary := &stubQuotes{name: "primary", quotes: map[string]provider.Quote{
		"AAA.NS": {Price: fptr(100), PreviousClose: fptr(0)},
		"BBB.NS": {Price: fptr(100)},
		"CCC.NS": {Price: fptr(100), PreviousClose: fptr(50), ChangePercent: fptr(math.NaN())},
	}}
	d := New(testConfig(), []provider.QuoteFetcher{primary}, nil)

	q, err := d.GetStockInfo(context.Background(), "AAA")
	require.NoError(t, err)
	require.True(t, q.Change.Valid)
	require.False(t, q.ChangePercent.Valid, "zero previous close must not produce a percent")

	q, err = d.GetStockInfo(context.Background(), "BBB")
	require.NoError(t, err)
	require.False(t, q.Change.Valid)
	require.False(t, q.ChangePercent.Valid)

	// Non-finite upstream values are unavailable, never NaN in a record.
	q, err = d.GetStockInfo(context.Background(), "CCC")
	require.NoError(t, err)
	require.True(t, q.ChangePercent.Valid)
	require.Equal(t, FloatOf(100), q.ChangePercent)
}

func moversFixture(t *testing.T, errSymbols map[string]error) *DataAccess {
	t.Helper()
	pct := map[string]float64{
		"AAA.NS": 5, "BBB.NS": 5, "CCC.NS": -3, "DDD.NS": 2, "EEE.NS": -1,
	}
	quotes := make(map[string]provider.Quote, len(pct))
	for sym, p := range pct {
		quotes[sym] = provider.Quote{Price: fptr(100), ChangePercent: fptr(p)}
	}
	cfg := testConfig()
	cfg.Watchlist = []string{"AAA", "BBB", "CCC", "DDD", "EEE"}
	return New(cfg, []provider.QuoteFetcher{
		&stubQuotes{name: "primary", quotes: quotes, errs: errSymbols},
	}, nil)
}

func TestMovers_StableTieBreakAndOrdering(t *testing.T) {
	d := moversFixture(t, nil)

	movers, err := d.GetTopGainersLosers(context.Background())
	require.NoError(t, err)

	var gainers, losers []string
	for _, q := range movers.Gainers {
		gainers = append(gainers, q.Symbol)
	}
	for _, q := range movers.Losers {
		losers = append(losers, q.Symbol)
	}
	// Equal +5 percent changes keep watch-list order: AAA before BBB.
	require.Equal(t, []string{"AAA", "BBB", "DDD"}, gainers)
	require.Equal(t, []string{"CCC", "EEE"}, losers)
	require.False(t, movers.Timestamp.IsZero())
}

func TestMovers_PerSymbolFailureExcludesOnlyThatSymbol(t *testing.T) {
	d := moversFixture(t, map[string]error{"CCC.NS": errors.New("unavailable")})

	movers, err := d.GetTopGainersLosers(context.Background())
	require.NoError(t, err)

	var losers []string
	for _, q := range movers.Losers {
		losers = append(losers, q.Symbol)
	}
	require.Equal(t, []string{"EEE"}, losers)
	require.Len(t, movers.Gainers, 3)
}

func TestMovers_AllSymbolsFailing(t *testing.T) {
	errs := map[string]error{}
	for _, s := range []string{"AAA.NS", "BBB.NS", "CCC.NS", "DDD.NS", "EEE.NS"} {
		errs[s] = errors.New("down")
	}
	d := moversFixture(t, errs)

	_, err := d.GetTopGainersLosers(context.Background())
	require.Error(t, err)
	require.Equal(t, KindUpstreamUnavailable, KindOf(err))
}

func TestMovers_TopKBound(t *testing.T) {
	quotes := map[string]provider.Quote{}
	watch := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		sym := fmt.Sprintf("G%02d", i)
		watch = append(watch, sym)
		quotes[sym+".NS"] = provider.Quote{Price: fptr(10), ChangePercent: fptr(float64(i + 1))}
	}
	cfg := testConfig()
	cfg.Watchlist = watch
	cfg.TopMovers = 3
	d := New(cfg, []provider.QuoteFetcher{&stubQuotes{name: "p", quotes: quotes}}, nil)

	movers, err := d.GetTopGainersLosers(context.Background())
	require.NoError(t, err)
	require.Len(t, movers.Gainers, 3)
	require.Equal(t, "G07", movers.Gainers[0].Symbol)
	require.Empty(t, movers.Losers)
}

func historyCandles(n int, newestFirst bool) []provider.Candle {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	out := make([]provider.Candle, 0, n)
	for i := 0; i < n; i++ {
		d := day.AddDate(0, 0, -i)
		out = append(out, provider.Candle{
			Date:  d,
			Open:  fptr(99), High: fptr(101), Low: fptr(98),
			Close: fptr(100 + float64(i)),
		})
	}
	if !newestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

func TestHistory_NormalizesOrderAndTruncatesShortWindow(t *testing.T) {
	hist := &stubHistory{name: "h", candles: historyCandles(40, true)}
	d := New(testConfig(), nil, hist)

	series, err := d.GetHistoricalData(context.Background(), "TCS", "1mo")
	require.NoError(t, err)
	require.Equal(t, "TCS", series.Symbol)
	require.Equal(t, "1mo", series.Period)
	require.Len(t, series.Points, 30)
	// Chronological, oldest first, ending at the newest upstream day.
	require.Less(t, series.Points[0].Date, series.Points[29].Date)
	require.Equal(t, "2025-06-02", series.Points[29].Date)
}

func TestHistory_LongWindowKeepsWholeSeries(t *testing.T) {
	hist := &stubHistory{name: "h", candles: historyCandles(40, false)}
	d := New(testConfig(), nil, hist)

	series, err := d.GetHistoricalData(context.Background(), "TCS", "3mo")
	require.NoError(t, err)
	require.Len(t, series.Points, 40)
	require.Equal(t, "3mo", hist.gotPeriod)
}

func TestHistory_EmptyUpstreamIsNoData(t *testing.T) {
	hist := &stubHistory{name: "h"}
	d := New(testConfig(), nil, hist)

	_, err := d.GetHistoricalData(context.Background(), "TCS", "1mo")
	require.Error(t, err)
	require.Equal(t, KindNoDataForSymbol, KindOf(err))
}

func TestHistory_UnsupportedPeriodIsInvalidInput(t *testing.T) {
	hist := &stubHistory{name: "h", candles: historyCandles(5, true)}
	d := New(testConfig(), nil, hist)

	_, err := d.GetHistoricalData(context.Background(), "TCS", "7y")
	require.Error(t, err)
	require.Equal(t, KindInvalidInput, KindOf(err))
	require.Zero(t, hist.calls)
}

func TestHistory_DefaultPeriodAndCaching(t *testing.T) {
	hist := &stubHistory{name: "h", candles: historyCandles(5, true)}
	d := New(testConfig(), nil, hist)

	s1, err := d.GetHistoricalData(context.Background(), "TCS", "")
	require.NoError(t, err)
	require.Equal(t, DefaultPeriod, s1.Period)

	_, err = d.GetHistoricalData(context.Background(), "tcs", "1mo")
	require.NoError(t, err)
	require.Equal(t, 1, hist.calls)
}

func TestSearch_MatchesAndEmptyResults(t *testing.T) {
	d := New(testConfig(), nil, nil)

	matches := d.SearchStocks(context.Background(), "tc")
	var symbols []string
	for _, m := range matches {
		symbols = append(symbols, m.Symbol)
	}
	require.Contains(t, symbols, "TCS")

	require.Empty(t, d.SearchStocks(context.Background(), "zzz"))
	require.Empty(t, d.SearchStocks(context.Background(), "   "))
}

func TestSearch_EnrichmentFailureKeepsBareMatch(t *testing.T) {
	cfg := testConfig()
	cfg.EnrichSearch = true
	primary := &stubQuotes{name: "p", quotes: map[string]provider.Quote{
		"TCS.NS": {Price: fptr(3900)},
	}}
	d := New(cfg, []provider.QuoteFetcher{primary}, nil)

	matches := d.SearchStocks(context.Background(), "tc")
	require.NotEmpty(t, matches)
	for _, m := range matches {
		switch m.Symbol {
		case "TCS":
			require.NotNil(t, m.Quote)
			require.Equal(t, FloatOf(3900), m.Quote.CurrentPrice)
		default:
			// Enrichment failed for symbols the stub does not know;
			// the match itself must survive.
			require.Nil(t, m.Quote)
		}
	}
}
