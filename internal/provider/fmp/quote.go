package fmp

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"stockdesk/internal/provider"
)

// periodDays maps period tokens to the timeseries bound requested from
// the API. Unknown tokens fetch the provider default window.
var periodDays = map[string]int{"1mo": 30, "3mo": 90, "6mo": 180, "1y": 365}

// FetchQuote retrieves a point-in-time quote from the quote endpoint.
// FMP responds with a one-element array; an empty array means the
// symbol is unknown to the provider.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	body, err := c.get(ctx, "/quote/"+url.PathEscape(symbol), nil)
	if err != nil {
		return provider.Quote{}, err
	}
	res := gjson.ParseBytes(body)
	if !res.IsArray() {
		return provider.Quote{}, fmt.Errorf("quote payload for %s is not an array: %w", symbol, provider.ErrMalformed)
	}
	arr := res.Array()
	if len(arr) == 0 {
		return provider.Quote{}, fmt.Errorf("quote for %s: %w", symbol, provider.ErrNoData)
	}
	s := arr[0]
	q := provider.Quote{
		Symbol:        s.Get("symbol").String(),
		Name:          s.Get("name").String(),
		Price:         numField(s, "price"),
		PreviousClose: numField(s, "previousClose"),
		Change:        numField(s, "change"),
		ChangePercent: numField(s, "changesPercentage"),
		Volume:        intField(s, "volume"),
		MarketCap:     numField(s, "marketCap"),
		PERatio:       numField(s, "pe"),
		DividendYield: numField(s, "lastDiv"),
		YearHigh:      numField(s, "yearHigh"),
		YearLow:       numField(s, "yearLow"),
		Source:        c.Name(),
	}
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	return q, nil
}

// FetchHistory retrieves daily bars from the historical-price-full
// endpoint. FMP returns newest-first; the caller normalizes order.
func (c *Client) FetchHistory(ctx context.Context, symbol string, period string) ([]provider.Candle, error) {
	params := url.Values{}
	if days, ok := periodDays[period]; ok && days > 0 {
		params.Set("timeseries", strconv.Itoa(days))
	}
	body, err := c.get(ctx, "/historical-price-full/"+url.PathEscape(symbol), params)
	if err != nil {
		return nil, err
	}
	res := gjson.ParseBytes(body)
	historical := res.Get("historical")
	if !historical.Exists() || !historical.IsArray() {
		if !res.IsObject() {
			return nil, fmt.Errorf("history payload for %s is not an object: %w", symbol, provider.ErrMalformed)
		}
		// FMP answers {} for unknown symbols rather than a 404.
		return nil, fmt.Errorf("history for %s: %w", symbol, provider.ErrNoData)
	}
	var candles []provider.Candle
	for _, e := range historical.Array() {
		day, err := time.Parse("2006-01-02", e.Get("date").String())
		if err != nil {
			continue
		}
		candles = append(candles, provider.Candle{
			Date:   day,
			Open:   numField(e, "open"),
			High:   numField(e, "high"),
			Low:    numField(e, "low"),
			Close:  numField(e, "close"),
			Volume: intField(e, "volume"),
		})
	}
	return candles, nil
}

// get performs a rate-limited GET and returns the raw body of a 2xx
// response. Transport errors, timeouts and non-2xx statuses all report
// as a fetch failure.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	query := maps.Clone(c.query)
	for k, vs := range params {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("unauthorized (check FMP_API_KEY)")
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited by provider")
	default:
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body: %w", provider.ErrMalformed)
	}
	return body, nil
}

// numField returns a pointer to the numeric value at path, or nil when
// the field is absent or not a number. FMP omits fields freely.
func numField(r gjson.Result, path string) *float64 {
	v := r.Get(path)
	if !v.Exists() || v.Type != gjson.Number {
		return nil
	}
	f := v.Float()
	return &f
}

func intField(r gjson.Result, path string) *int64 {
	v := r.Get(path)
	if !v.Exists() || v.Type != gjson.Number {
		return nil
	}
	i := v.Int()
	return &i
}
