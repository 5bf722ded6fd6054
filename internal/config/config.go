package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type FMP struct {
	Enabled              bool   `json:"enabled"`
	APIKey               string `json:"api_key"`
	BaseURL              string `json:"base_url"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute"`
	Burst                int    `json:"burst"`
	MaxRetries           int    `json:"max_retries"`
}

type Yahoo struct {
	Enabled bool `json:"enabled"`
}

type Market struct {
	QuoteIntervalSec   int `json:"quote_interval_sec"`
	HistoryIntervalSec int `json:"history_interval_sec"`
	MoversIntervalSec  int `json:"movers_interval_sec"`

	QuoteTTLSec       int `json:"quote_ttl_sec"`
	QuoteCacheItems   int `json:"quote_cache_items"`
	HistoryTTLSec     int `json:"history_ttl_sec"`
	HistoryCacheItems int `json:"history_cache_items"`
	MoversTTLSec      int `json:"movers_ttl_sec"`
	SearchTTLSec      int `json:"search_ttl_sec"`
	SearchCacheItems  int `json:"search_cache_items"`

	Watchlist     []string          `json:"watchlist"`
	TopMovers     int               `json:"top_movers"`
	Aliases       map[string]string `json:"aliases"`
	DefaultSuffix string            `json:"default_suffix"`
	EnrichSearch  bool              `json:"enrich_search"`
}

type Config struct {
	Server Server `json:"server"`
	FMP    FMP    `json:"fmp"`
	Yahoo  Yahoo  `json:"yahoo"`
	Market Market `json:"market"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8000", RequestTimeoutSec: 10},
		FMP: FMP{
			Enabled:              true,
			BaseURL:              "https://financialmodelingprep.com/api/v3",
			MaxRequestsPerMinute: 250,
			Burst:                5,
			MaxRetries:           3,
		},
		Yahoo: Yahoo{Enabled: true},
		Market: Market{
			QuoteIntervalSec:   1,
			HistoryIntervalSec: 1,
			MoversIntervalSec:  2,
			QuoteTTLSec:        60,
			QuoteCacheItems:    100,
			HistoryTTLSec:      300,
			HistoryCacheItems:  50,
			MoversTTLSec:       120,
			SearchTTLSec:       3600,
			SearchCacheItems:   50,
			TopMovers:          5,
			DefaultSuffix:      ".NS",
		},
	}
}

// Load reads JSON config from path. If path is empty or the file does
// not exist, it returns defaults. Environment variables override select
// fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("FMP_API_KEY"); v != "" {
		cfg.FMP.APIKey = v
	}
	if v := os.Getenv("FMP_BASE_URL"); v != "" {
		cfg.FMP.BaseURL = v
	}
	if v := os.Getenv("FMP_MAX_RPM"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.FMP.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("FMP_MAX_RETRIES"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.FMP.MaxRetries = x
		}
	}
	if v := os.Getenv("YAHOO_ENABLED"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			cfg.Yahoo.Enabled = true
		case "0", "false", "no", "n":
			cfg.Yahoo.Enabled = false
		}
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		cfg.Market.Watchlist = splitCSV(v)
	}
	if v := os.Getenv("TOP_MOVERS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Market.TopMovers = x
		}
	}
	if v := os.Getenv("QUOTE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Market.QuoteTTLSec = x
		}
	}
	if v := os.Getenv("QUOTE_INTERVAL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Market.QuoteIntervalSec = x
		}
	}
	if v := os.Getenv("ENRICH_SEARCH"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			cfg.Market.EnrichSearch = true
		case "0", "false", "no", "n":
			cfg.Market.EnrichSearch = false
		}
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
