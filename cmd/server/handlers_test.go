package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phuslu/log"

	"stockdesk/internal/market"
	"stockdesk/internal/provider"
)

type fakeQuotes struct {
	name   string
	quotes map[string]provider.Quote
	err    error
}

func (f fakeQuotes) Name() string { return f.name }

func (f fakeQuotes) FetchQuote(_ context.Context, symbol string) (provider.Quote, error) {
	if f.err != nil {
		return provider.Quote{}, f.err
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return provider.Quote{}, fmt.Errorf("quote %s: %w", symbol, provider.ErrNoData)
	}
	return q, nil
}

func testServer(chain ...provider.QuoteFetcher) *server {
	logger := log.Logger{Level: log.PanicLevel, Writer: &log.IOWriter{Writer: io.Discard}}
	data := market.New(market.Config{
		QuoteTTL: time.Minute,
		Logger:   &logger,
	}, chain, nil)
	return &server{data: data, logger: &logger}
}

func price(v float64) *float64 { return &v }

func TestStockHandler_Success(t *testing.T) {
	s := testServer(fakeQuotes{name: "p", quotes: map[string]provider.Quote{
		"TCS.NS": {Price: price(3900), PreviousClose: price(4000), Name: "Tata Consultancy Services"},
	}})

	r := httptest.NewRequest("GET", "/stock/tcs", nil)
	r.SetPathValue("symbol", "tcs")
	rr := httptest.NewRecorder()
	s.handleStock(rr, r)

	if rr.Code != 200 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["symbol"] != "TCS" || resp["company_name"] != "Tata Consultancy Services" {
		t.Fatalf("unexpected: %+v", resp)
	}
	if resp["current_price"] != 3900.0 || resp["change"] != -100.0 {
		t.Fatalf("unexpected numbers: %+v", resp)
	}
}

func TestStockHandler_ErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		symbol string
		chain  provider.QuoteFetcher
		want   int
	}{
		{"blank symbol", "   ", fakeQuotes{name: "p"}, 400},
		{"unknown symbol", "NOSUCH", fakeQuotes{name: "p"}, 404},
		{"upstream down", "TCS", fakeQuotes{name: "p", err: errors.New("connection refused")}, 502},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := testServer(tc.chain)
			r := httptest.NewRequest("GET", "/stock/x", nil)
			r.SetPathValue("symbol", tc.symbol)
			rr := httptest.NewRecorder()
			s.handleStock(rr, r)
			if rr.Code != tc.want {
				t.Fatalf("status=%d want=%d body=%s", rr.Code, tc.want, rr.Body.String())
			}
			var resp map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp["kind"] == "" || resp["error"] == "" {
				t.Fatalf("error payload missing fields: %+v", resp)
			}
		})
	}
}

func TestSearchHandler_NeverFails(t *testing.T) {
	s := testServer()

	r := httptest.NewRequest("GET", "/search/zzz", nil)
	r.SetPathValue("query", "zzz")
	rr := httptest.NewRecorder()
	s.handleSearch(rr, r)

	if rr.Code != 200 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp []any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 0 {
		t.Fatalf("want empty list, got %+v", resp)
	}
}

func mcpCall(t *testing.T, s *server, body string) (int, mcpResponse) {
	t.Helper()
	r := httptest.NewRequest("POST", "/mcp", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	s.handleMCP(rr, r)
	var resp mcpResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v body=%s", err, rr.Body.String())
	}
	return rr.Code, resp
}

func TestMCP_DispatchStockInfo(t *testing.T) {
	s := testServer(fakeQuotes{name: "p", quotes: map[string]provider.Quote{
		"TCS.NS": {Price: price(3900)},
	}})

	code, resp := mcpCall(t, s, `{"method":"get_stock_info","params":{"symbol":"TCS"}}`)
	if code != 200 || !resp.Success || resp.Method != "get_stock_info" {
		t.Fatalf("code=%d resp=%+v", code, resp)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok || data["symbol"] != "TCS" {
		t.Fatalf("unexpected data: %+v", resp.Data)
	}
}

func TestMCP_OperationFailureIsEnvelopeError(t *testing.T) {
	s := testServer(fakeQuotes{name: "p", err: errors.New("connection refused")})

	// The transport succeeds; the failure rides inside the envelope.
	code, resp := mcpCall(t, s, `{"method":"get_stock_info","params":{"symbol":"TCS"}}`)
	if code != 200 || resp.Success || resp.Error == "" {
		t.Fatalf("code=%d resp=%+v", code, resp)
	}
}

func TestMCP_UnknownMethod(t *testing.T) {
	s := testServer()

	code, resp := mcpCall(t, s, `{"method":"get_weather","params":{}}`)
	if code != 400 || resp.Success {
		t.Fatalf("code=%d resp=%+v", code, resp)
	}
}

func TestMCP_InvalidBody(t *testing.T) {
	s := testServer()

	code, resp := mcpCall(t, s, `{not json`)
	if code != 400 || resp.Success {
		t.Fatalf("code=%d resp=%+v", code, resp)
	}
}

func TestMCP_SearchDispatch(t *testing.T) {
	s := testServer()

	code, resp := mcpCall(t, s, `{"method":"search_stocks","params":{"query":"reliance"}}`)
	if code != 200 || !resp.Success {
		t.Fatalf("code=%d resp=%+v", code, resp)
	}
	matches, ok := resp.Data.([]any)
	if !ok || len(matches) != 1 {
		t.Fatalf("unexpected matches: %+v", resp.Data)
	}
}
