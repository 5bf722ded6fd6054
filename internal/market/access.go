// Package market owns the rate-limited, memoized access layer over the
// upstream market-data providers: one alias table, one throttle gate and
// one bounded cache per operation, and an ordered fallback chain of
// quote strategies. One instance per process owns all throttle and
// cache state.
package market

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"stockdesk/internal/provider"
)

// DefaultPeriod is the history window used when the caller names none.
const DefaultPeriod = "1mo"

// DefaultPeriods maps supported period tokens to the number of
// most-recent points kept after normalizing to oldest-first. Zero keeps
// the whole series.
func DefaultPeriods() map[string]int {
	return map[string]int{"1mo": 30, "3mo": 0, "6mo": 0, "1y": 0}
}

// moversFanout caps concurrent watch-list quote fetches; the quote gate
// serializes the upstream calls anyway, this only bounds goroutines.
const moversFanout = 4

// Config carries the per-call-site throttle and cache tuning. Zero
// values fall back to defaults in New.
type Config struct {
	Aliases       []AliasEntry
	DefaultSuffix string
	Watchlist     []string
	TopMovers     int
	Periods       map[string]int
	EnrichSearch  bool
	SearchLimit   int

	QuoteInterval   time.Duration
	HistoryInterval time.Duration
	MoversInterval  time.Duration

	QuoteTTL   time.Duration
	QuoteCap   int
	HistoryTTL time.Duration
	HistoryCap int
	MoversTTL  time.Duration
	SearchTTL  time.Duration
	SearchCap  int

	Logger *log.Logger
}

// DataAccess is the single in-process owner of throttle and cache
// state. All four operations are synchronous, idempotent given a fresh
// cache, and side-effect free beyond cache/throttle bookkeeping.
type DataAccess struct {
	cfg     Config
	aliases *AliasTable
	chain   []provider.QuoteFetcher
	history provider.HistoryFetcher

	quoteGate   *Gate
	historyGate *Gate
	moversGate  *Gate

	quoteCache   *Cache[Quote]
	historyCache *Cache[HistorySeries]
	moversCache  *Cache[MoverList]
	searchCache  *Cache[[]SearchMatch]

	logger log.Logger
	now    func() time.Time
}

// New builds a DataAccess over an ordered quote fallback chain and a
// history fetcher. The chain is tried in order; provider choice is a
// wiring concern of the caller, not of this package.
func New(cfg Config, chain []provider.QuoteFetcher, history provider.HistoryFetcher) *DataAccess {
	if len(cfg.Aliases) == 0 {
		cfg.Aliases = DefaultAliases()
	}
	if cfg.TopMovers <= 0 {
		cfg.TopMovers = 5
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 10
	}
	if cfg.Periods == nil {
		cfg.Periods = DefaultPeriods()
	}
	if cfg.QuoteCap <= 0 {
		cfg.QuoteCap = 100
	}
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = 50
	}
	if cfg.SearchCap <= 0 {
		cfg.SearchCap = 50
	}
	aliases := NewAliasTable(cfg.Aliases, cfg.DefaultSuffix)
	if len(cfg.Watchlist) == 0 {
		cfg.Watchlist = aliases.Tickers()
	}
	logger := log.Logger{Level: log.InfoLevel, Writer: &log.IOWriter{Writer: os.Stderr}}
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &DataAccess{
		cfg:          cfg,
		aliases:      aliases,
		chain:        chain,
		history:      history,
		quoteGate:    NewGate(cfg.QuoteInterval),
		historyGate:  NewGate(cfg.HistoryInterval),
		moversGate:   NewGate(cfg.MoversInterval),
		quoteCache:   NewCache[Quote](cfg.QuoteCap),
		historyCache: NewCache[HistorySeries](cfg.HistoryCap),
		moversCache:  NewCache[MoverList](1),
		searchCache:  NewCache[[]SearchMatch](cfg.SearchCap),
		logger:       logger,
		now:          time.Now,
	}
}

// GetStockInfo resolves a ticker and returns its quote, walking the
// fallback chain behind the quote throttle and cache.
func (d *DataAccess) GetStockInfo(ctx context.Context, symbol string) (Quote, error) {
	canonical := d.aliases.Canonical(symbol)
	if canonical == "" {
		return Quote{}, newError(KindInvalidInput, symbol, "ticker must not be empty")
	}
	providerSym := d.aliases.Resolve(canonical)
	return d.quoteCache.GetOrCompute("quote:"+providerSym, d.cfg.QuoteTTL, func() (Quote, error) {
		return d.fetchQuote(ctx, canonical, providerSym)
	})
}

func (d *DataAccess) fetchQuote(ctx context.Context, canonical, providerSym string) (Quote, error) {
	if len(d.chain) == 0 {
		return Quote{}, newError(KindUpstreamUnavailable, canonical, "no quote source configured")
	}
	if err := d.quoteGate.Acquire(ctx); err != nil {
		return Quote{}, classify(err, canonical)
	}
	var lastErr error
	for _, f := range d.chain {
		raw, err := f.FetchQuote(ctx, providerSym)
		if err == nil && raw.Price == nil {
			err = fmt.Errorf("%s: %w", f.Name(), provider.ErrNoData)
		}
		if err != nil {
			d.logger.Warn().Str("provider", f.Name()).Str("symbol", providerSym).Err(err).
				Msg("quote strategy failed, falling through")
			lastErr = err
			continue
		}
		return d.buildQuote(canonical, raw), nil
	}
	return Quote{}, classify(lastErr, canonical)
}

// buildQuote reshapes a raw provider record into the fixed schema.
// Currency and ratio fields are rounded to two decimals on the way out;
// absent fields become the explicit unavailable sentinel.
func (d *DataAccess) buildQuote(canonical string, raw provider.Quote) Quote {
	q := Quote{
		Symbol:        canonical,
		CompanyName:   raw.Name,
		CurrentPrice:  toFloat(raw.Price),
		PreviousClose: toFloat(raw.PreviousClose),
		Change:        toFloat(raw.Change),
		ChangePercent: toFloat(raw.ChangePercent),
		Volume:        toInt(raw.Volume),
		MarketCap:     toFloat(raw.MarketCap),
		PERatio:       toFloat(raw.PERatio),
		DividendYield: toFloat(raw.DividendYield),
		YearHigh:      toFloat(raw.YearHigh),
		YearLow:       toFloat(raw.YearLow),
		Sector:        orNA(raw.Sector),
		Industry:      orNA(raw.Industry),
		Source:        raw.Source,
	}
	if q.CompanyName == "" {
		q.CompanyName = canonical
	}
	if !q.Change.Valid && q.CurrentPrice.Valid && q.PreviousClose.Valid {
		q.Change = FloatOf(q.CurrentPrice.Value - q.PreviousClose.Value)
	}
	// Never divide by an unavailable or zero previous close.
	if !q.ChangePercent.Valid && q.Change.Valid && q.PreviousClose.Valid && q.PreviousClose.Value != 0 {
		q.ChangePercent = FloatOf(q.Change.Value / q.PreviousClose.Value * 100)
	}
	if q.MarketCap.Valid {
		q.MarketCapDisplay = FormatINR(q.MarketCap.Value)
	} else {
		q.MarketCapDisplay = "N/A"
	}
	return q
}

// GetHistoricalData returns the daily series for a ticker over a
// supported period token, chronological oldest first.
func (d *DataAccess) GetHistoricalData(ctx context.Context, symbol, period string) (HistorySeries, error) {
	canonical := d.aliases.Canonical(symbol)
	if canonical == "" {
		return HistorySeries{}, newError(KindInvalidInput, symbol, "ticker must not be empty")
	}
	if period == "" {
		period = DefaultPeriod
	}
	keep, ok := d.cfg.Periods[period]
	if !ok {
		return HistorySeries{}, newError(KindInvalidInput, canonical, "unsupported period %q", period)
	}
	providerSym := d.aliases.Resolve(canonical)
	key := "history:" + providerSym + ":" + period
	return d.historyCache.GetOrCompute(key, d.cfg.HistoryTTL, func() (HistorySeries, error) {
		return d.fetchHistory(ctx, canonical, providerSym, period, keep)
	})
}

func (d *DataAccess) fetchHistory(ctx context.Context, canonical, providerSym, period string, keep int) (HistorySeries, error) {
	if d.history == nil {
		return HistorySeries{}, newError(KindUpstreamUnavailable, canonical, "no history source configured")
	}
	if err := d.historyGate.Acquire(ctx); err != nil {
		return HistorySeries{}, classify(err, canonical)
	}
	candles, err := d.history.FetchHistory(ctx, providerSym, period)
	if err != nil {
		return HistorySeries{}, classify(err, canonical)
	}
	if len(candles) == 0 {
		return HistorySeries{}, newError(KindNoDataForSymbol, canonical, "no historical data for %s", canonical)
	}
	// Normalize to oldest-first before any truncation; upstream order
	// is a provider contract this layer refuses to assume.
	sort.Slice(candles, func(i, j int) bool { return candles[i].Date.Before(candles[j].Date) })
	if keep > 0 && len(candles) > keep {
		candles = candles[len(candles)-keep:]
	}
	points := make([]HistoryPoint, 0, len(candles))
	for _, c := range candles {
		points = append(points, HistoryPoint{
			Date:   c.Date.Format("2006-01-02"),
			Open:   toFloat(c.Open),
			High:   toFloat(c.High),
			Low:    toFloat(c.Low),
			Close:  toFloat(c.Close),
			Volume: toInt(c.Volume),
		})
	}
	return HistorySeries{Symbol: canonical, Period: period, Points: points}, nil
}

// GetTopGainersLosers sweeps the watch-list through the same quote
// throttle and cache, ranks by percent change and returns the top K of
// each side. A per-symbol failure excludes that symbol only.
func (d *DataAccess) GetTopGainersLosers(ctx context.Context) (MoverList, error) {
	return d.moversCache.GetOrCompute("movers", d.cfg.MoversTTL, func() (MoverList, error) {
		return d.rankMovers(ctx)
	})
}

func (d *DataAccess) rankMovers(ctx context.Context) (MoverList, error) {
	if err := d.moversGate.Acquire(ctx); err != nil {
		return MoverList{}, classify(err, "")
	}
	quotes := make([]*Quote, len(d.cfg.Watchlist))
	g := new(errgroup.Group)
	g.SetLimit(moversFanout)
	for i, sym := range d.cfg.Watchlist {
		g.Go(func() error {
			q, err := d.GetStockInfo(ctx, sym)
			if err != nil {
				// Excluded from ranking; never aborts the sweep.
				d.logger.Warn().Str("symbol", sym).Err(err).Msg("excluding symbol from mover ranking")
				return nil
			}
			quotes[i] = &q
			return nil
		})
	}
	_ = g.Wait()

	var fetched int
	var gainers, losers []Quote
	for _, q := range quotes {
		if q == nil {
			continue
		}
		fetched++
		if !q.ChangePercent.Valid {
			continue
		}
		switch {
		case q.ChangePercent.Value > 0:
			gainers = append(gainers, *q)
		case q.ChangePercent.Value < 0:
			losers = append(losers, *q)
		}
	}
	if fetched == 0 {
		return MoverList{}, newError(KindUpstreamUnavailable, "", "no watch-list quotes available")
	}
	// Stable sorts keep watch-list order between equal percent changes.
	sort.SliceStable(gainers, func(i, j int) bool {
		return gainers[i].ChangePercent.Value > gainers[j].ChangePercent.Value
	})
	sort.SliceStable(losers, func(i, j int) bool {
		return losers[i].ChangePercent.Value < losers[j].ChangePercent.Value
	})
	if len(gainers) > d.cfg.TopMovers {
		gainers = gainers[:d.cfg.TopMovers]
	}
	if len(losers) > d.cfg.TopMovers {
		losers = losers[:d.cfg.TopMovers]
	}
	return MoverList{Gainers: gainers, Losers: losers, Timestamp: d.now().UTC()}, nil
}

// SearchStocks matches the query as a case-insensitive substring of the
// canonical tickers. It never fails: no match is an empty list, and
// enrichment failures degrade to a bare match.
func (d *DataAccess) SearchStocks(ctx context.Context, query string) []SearchMatch {
	q := strings.TrimSpace(query)
	if q == "" {
		return []SearchMatch{}
	}
	matches, _ := d.searchCache.GetOrCompute("search:"+strings.ToUpper(q), d.cfg.SearchTTL, func() ([]SearchMatch, error) {
		return d.search(ctx, q), nil
	})
	return matches
}

func (d *DataAccess) search(ctx context.Context, query string) []SearchMatch {
	out := []SearchMatch{}
	for _, ticker := range d.aliases.Search(query, d.cfg.SearchLimit) {
		m := SearchMatch{Symbol: ticker, ProviderSymbol: d.aliases.Resolve(ticker)}
		if d.cfg.EnrichSearch {
			if q, err := d.GetStockInfo(ctx, ticker); err == nil {
				m.Quote = &q
			}
		}
		out = append(out, m)
	}
	return out
}

func toFloat(p *float64) Float {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return Float{}
	}
	return FloatOf(*p)
}

func toInt(p *int64) Int {
	if p == nil {
		return Int{}
	}
	return IntOf(*p)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
