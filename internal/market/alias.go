package market

import "strings"

// AliasEntry maps a canonical short ticker to a provider identifier.
type AliasEntry struct {
	Ticker   string
	Provider string
}

// AliasTable resolves canonical tickers to provider symbols. It is
// populated once at construction and immutable afterwards; iteration
// order is the construction order.
type AliasTable struct {
	order    []string
	byTicker map[string]string
	suffix   string
}

// DefaultSuffix is the transform applied to unknown tickers (NSE
// listing convention).
const DefaultSuffix = ".NS"

// DefaultAliases covers the NSE large caps the dashboard watches.
func DefaultAliases() []AliasEntry {
	tickers := []string{
		"RELIANCE", "TCS", "INFY", "HDFCBANK", "ICICIBANK",
		"HINDUNILVR", "ITC", "SBIN", "BHARTIARTL", "KOTAKBANK",
		"LT", "ASIANPAINT", "MARUTI", "AXISBANK", "WIPRO",
	}
	entries := make([]AliasEntry, 0, len(tickers))
	for _, t := range tickers {
		entries = append(entries, AliasEntry{Ticker: t, Provider: t + DefaultSuffix})
	}
	return entries
}

func NewAliasTable(entries []AliasEntry, suffix string) *AliasTable {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	t := &AliasTable{
		order:    make([]string, 0, len(entries)),
		byTicker: make(map[string]string, len(entries)),
		suffix:   suffix,
	}
	for _, e := range entries {
		ticker := strings.ToUpper(strings.TrimSpace(e.Ticker))
		if ticker == "" {
			continue
		}
		if _, dup := t.byTicker[ticker]; dup {
			continue
		}
		t.order = append(t.order, ticker)
		t.byTicker[ticker] = e.Provider
	}
	return t
}

// Resolve maps a ticker to its provider symbol. Resolution is
// case-insensitive and trimmed; unknown tickers get the default suffix
// transform instead of failing. A ticker that already carries an
// exchange suffix passes through unchanged.
func (t *AliasTable) Resolve(ticker string) string {
	s := strings.ToUpper(strings.TrimSpace(ticker))
	if s == "" {
		return ""
	}
	if v, ok := t.byTicker[s]; ok {
		return v
	}
	if strings.Contains(s, ".") {
		return s
	}
	return s + t.suffix
}

// Canonical reports the trimmed upper-cased form of a ticker.
func (t *AliasTable) Canonical(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Search returns up to limit canonical tickers containing the query as
// a case-insensitive substring, in table iteration order.
func (t *AliasTable) Search(query string, limit int) []string {
	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []string
	for _, ticker := range t.order {
		if strings.Contains(ticker, q) {
			out = append(out, ticker)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// Tickers returns the canonical tickers in iteration order.
func (t *AliasTable) Tickers() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}
