// Command fetch runs one data-access operation from the terminal and
// prints the result as JSON. Useful for poking the providers without
// the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/phuslu/log"

	"stockdesk/internal/config"
	"stockdesk/internal/market"
	"stockdesk/internal/wiring"
)

func main() {
	var symbol string
	var period string
	var query string
	var movers bool
	var history bool
	var timeout int
	var configPath string

	flag.StringVar(&symbol, "symbol", "", "ticker to quote (e.g. RELIANCE)")
	flag.StringVar(&period, "period", market.DefaultPeriod, "history period token (1mo, 3mo, 6mo, 1y)")
	flag.BoolVar(&history, "history", false, "fetch historical series instead of a quote")
	flag.BoolVar(&movers, "movers", false, "fetch top gainers and losers")
	flag.StringVar(&query, "search", "", "substring symbol search")
	flag.IntVar(&timeout, "timeout", 30, "overall timeout seconds")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger := log.Logger{Level: log.WarnLevel, Writer: &log.ConsoleWriter{Writer: os.Stderr}}

	data := wiring.BuildDataAccess(cfg, &logger)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	var out any
	switch {
	case movers:
		out, err = data.GetTopGainersLosers(ctx)
	case query != "":
		out = data.SearchStocks(ctx, query)
	case history && symbol != "":
		out, err = data.GetHistoricalData(ctx, symbol, period)
	case symbol != "":
		out, err = data.GetStockInfo(ctx, symbol)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("fetch")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	_ = enc.Encode(out)
}
