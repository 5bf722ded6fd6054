// Package wiring assembles the data-access layer from loaded config.
// The server and the fetch CLI share it so their provider chains cannot
// drift apart.
package wiring

import (
	"sort"
	"time"

	"github.com/phuslu/log"

	"stockdesk/internal/config"
	"stockdesk/internal/httpx"
	"stockdesk/internal/market"
	"stockdesk/internal/provider"
	"stockdesk/internal/provider/derived"
	"stockdesk/internal/provider/fmp"
	"stockdesk/internal/provider/yahoo"
)

// BuildDataAccess wires the fallback chain in order: FMP quote, Yahoo
// quote, quote derived from recent history. Disabled or keyless
// providers are left out of the chain.
func BuildDataAccess(cfg config.Config, logger *log.Logger) *market.DataAccess {
	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	if cfg.FMP.MaxRetries >= 0 {
		httpClient.MaxRetries = uint64(cfg.FMP.MaxRetries)
	}

	var chain []provider.QuoteFetcher
	var history provider.HistoryFetcher
	if cfg.FMP.Enabled && cfg.FMP.APIKey != "" {
		fmpClient := fmp.NewClient(cfg.FMP.APIKey,
			fmp.WithBaseURL(cfg.FMP.BaseURL),
			fmp.WithHTTPClient(httpClient),
			fmp.WithRequestsPerMinute(cfg.FMP.MaxRequestsPerMinute, cfg.FMP.Burst),
		)
		chain = append(chain, fmpClient)
		history = fmpClient
	}
	if cfg.Yahoo.Enabled {
		y := yahoo.New()
		chain = append(chain, y)
		if history == nil {
			history = y
		}
	}
	if history != nil {
		chain = append(chain, derived.New(history))
	}

	return market.New(marketConfig(cfg, logger), chain, history)
}

func marketConfig(cfg config.Config, logger *log.Logger) market.Config {
	m := cfg.Market
	return market.Config{
		Aliases:         aliasEntries(m.Aliases),
		DefaultSuffix:   m.DefaultSuffix,
		Watchlist:       m.Watchlist,
		TopMovers:       m.TopMovers,
		EnrichSearch:    m.EnrichSearch,
		QuoteInterval:   time.Duration(m.QuoteIntervalSec) * time.Second,
		HistoryInterval: time.Duration(m.HistoryIntervalSec) * time.Second,
		MoversInterval:  time.Duration(m.MoversIntervalSec) * time.Second,
		QuoteTTL:        time.Duration(m.QuoteTTLSec) * time.Second,
		QuoteCap:        m.QuoteCacheItems,
		HistoryTTL:      time.Duration(m.HistoryTTLSec) * time.Second,
		HistoryCap:      m.HistoryCacheItems,
		MoversTTL:       time.Duration(m.MoversTTLSec) * time.Second,
		SearchTTL:       time.Duration(m.SearchTTLSec) * time.Second,
		SearchCap:       m.SearchCacheItems,
		Logger:          logger,
	}
}

// aliasEntries converts the config alias map to ordered entries. JSON
// objects carry no order, so the table iterates alphabetically when
// configured from file.
func aliasEntries(m map[string]string) []market.AliasEntry {
	if len(m) == 0 {
		return nil
	}
	tickers := make([]string, 0, len(m))
	for t := range m {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	entries := make([]market.AliasEntry, 0, len(tickers))
	for _, t := range tickers {
		entries = append(entries, market.AliasEntry{Ticker: t, Provider: m[t]})
	}
	return entries
}
