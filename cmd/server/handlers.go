package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/phuslu/log"

	"stockdesk/internal/market"
)

type server struct {
	data   *market.DataAccess
	logger *log.Logger
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "stockdesk market data service",
		"status":  "running",
		"market":  market.Status(time.Now()),
	})
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *server) handleStock(w http.ResponseWriter, r *http.Request) {
	quote, err := s.data.GetStockInfo(r.Context(), r.PathValue("symbol"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *server) handleHistorical(w http.ResponseWriter, r *http.Request) {
	series, err := s.data.GetHistoricalData(r.Context(), r.PathValue("symbol"), r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *server) handleMovers(w http.ResponseWriter, r *http.Request) {
	movers, err := s.data.GetTopGainersLosers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movers)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	matches := s.data.SearchStocks(r.Context(), r.PathValue("query"))
	writeJSON(w, http.StatusOK, matches)
}

// mcpRequest is the envelope the chat front-end speaks.
type mcpRequest struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

type mcpResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Method  string `json:"method"`
}

// handleMCP dispatches a {method, params} envelope to one of the four
// data-access operations. Operation failures come back as an error
// payload, never as a dropped connection; the front-end renders them.
func (s *server) handleMCP(w http.ResponseWriter, r *http.Request) {
	var req mcpRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, mcpResponse{Success: false, Error: "invalid JSON body"})
		return
	}

	param := func(key string) string {
		v, _ := req.Params[key].(string)
		return v
	}

	var data any
	var err error
	switch req.Method {
	case "get_stock_info":
		data, err = s.data.GetStockInfo(r.Context(), param("symbol"))
	case "get_historical_data":
		data, err = s.data.GetHistoricalData(r.Context(), param("symbol"), param("period"))
	case "get_top_gainers_losers":
		data, err = s.data.GetTopGainersLosers(r.Context())
	case "search_stocks":
		data = s.data.SearchStocks(r.Context(), param("query"))
	default:
		writeJSON(w, http.StatusBadRequest, mcpResponse{Success: false, Error: "unknown method: " + req.Method, Method: req.Method})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusOK, mcpResponse{Success: false, Error: err.Error(), Method: req.Method})
		return
	}
	writeJSON(w, http.StatusOK, mcpResponse{Success: true, Data: data, Method: req.Method})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(market.KindOf(err)), map[string]string{
		"error": err.Error(),
		"kind":  market.KindOf(err).String(),
	})
}

func statusFor(kind market.Kind) int {
	switch kind {
	case market.KindInvalidInput:
		return http.StatusBadRequest
	case market.KindNoDataForSymbol:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}
