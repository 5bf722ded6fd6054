package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"

	"stockdesk/internal/config"
	"stockdesk/internal/wiring"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger := log.Logger{
		Level:      log.InfoLevel,
		TimeFormat: time.RFC3339,
		Writer:     &log.ConsoleWriter{Writer: os.Stderr},
	}

	if cfg.FMP.Enabled && cfg.FMP.APIKey == "" {
		logger.Warn().Msg("fmp.enabled=true but FMP_API_KEY not set; skipping FMP")
	}

	data := wiring.BuildDataAccess(cfg, &logger)
	srv := &server{data: data, logger: &logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", srv.handleRoot)
	mux.HandleFunc("GET /healthz", srv.handleHealthz)
	mux.HandleFunc("POST /mcp", srv.handleMCP)
	mux.HandleFunc("GET /stock/{symbol}", srv.handleStock)
	mux.HandleFunc("GET /historical/{symbol}", srv.handleHistorical)
	mux.HandleFunc("GET /market/movers", srv.handleMovers)
	mux.HandleFunc("GET /search/{query}", srv.handleSearch)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(&logger, limitBody(logRequests(&logger, mux))))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server")
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
