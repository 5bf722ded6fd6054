package market

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Float is a numeric field that is either a finite value or explicitly
// unavailable. Unavailable fields marshal as "N/A" so the dashboard
// never sees a silent null, and arithmetic on them is gated by Valid.
type Float struct {
	Value float64
	Valid bool
}

// FloatOf returns an available Float rounded to two decimal places.
func FloatOf(v float64) Float {
	r, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return Float{Value: r, Valid: true}
}

func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte(`"N/A"`), nil
	}
	return strconv.AppendFloat(nil, f.Value, 'f', -1, 64), nil
}

// Int is the integer counterpart of Float (volumes, counts).
type Int struct {
	Value int64
	Valid bool
}

func IntOf(v int64) Int {
	return Int{Value: v, Valid: true}
}

func (i Int) MarshalJSON() ([]byte, error) {
	if !i.Valid {
		return []byte(`"N/A"`), nil
	}
	return strconv.AppendInt(nil, i.Value, 10), nil
}

// Quote is the fixed schema handed to the presentation layer.
type Quote struct {
	Symbol           string `json:"symbol"`
	CompanyName      string `json:"company_name"`
	CurrentPrice     Float  `json:"current_price"`
	PreviousClose    Float  `json:"previous_close"`
	Change           Float  `json:"change"`
	ChangePercent    Float  `json:"change_percent"`
	Volume           Int    `json:"volume"`
	MarketCap        Float  `json:"market_cap"`
	MarketCapDisplay string `json:"market_cap_display"`
	PERatio          Float  `json:"pe_ratio"`
	DividendYield    Float  `json:"dividend_yield"`
	YearHigh         Float  `json:"52_week_high"`
	YearLow          Float  `json:"52_week_low"`
	Sector           string `json:"sector"`
	Industry         string `json:"industry"`
	Source           string `json:"source,omitempty"`
}

// HistoryPoint is one daily bar. Date is the calendar day, ISO formatted.
type HistoryPoint struct {
	Date   string `json:"date"`
	Open   Float  `json:"open"`
	High   Float  `json:"high"`
	Low    Float  `json:"low"`
	Close  Float  `json:"close"`
	Volume Int    `json:"volume"`
}

// HistorySeries is a chronological (oldest first) sequence of bars.
type HistorySeries struct {
	Symbol string         `json:"symbol"`
	Period string         `json:"period"`
	Points []HistoryPoint `json:"data"`
}

// MoverList holds the ranked gainers and losers of the watch-list sweep.
type MoverList struct {
	Gainers   []Quote   `json:"top_gainers"`
	Losers    []Quote   `json:"top_losers"`
	Timestamp time.Time `json:"timestamp"`
}

// SearchMatch is one hit of a symbol search. Quote is nil when
// enrichment is disabled or failed for this symbol.
type SearchMatch struct {
	Symbol         string `json:"symbol"`
	ProviderSymbol string `json:"provider_symbol"`
	Quote          *Quote `json:"quote,omitempty"`
}

// FormatINR renders an amount in the Indian crore/lakh convention used
// by the dashboard cards.
func FormatINR(amount float64) string {
	switch {
	case amount >= 1e7:
		return fmt.Sprintf("₹%.2f Cr", amount/1e7)
	case amount >= 1e5:
		return fmt.Sprintf("₹%.2f L", amount/1e5)
	default:
		return fmt.Sprintf("₹%.2f", amount)
	}
}

// ist is the NSE trading timezone. LoadLocation can fail on stripped
// containers without tzdata, hence the fixed-offset fallback.
var ist = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc
	}
	return time.FixedZone("IST", int((5*time.Hour + 30*time.Minute).Seconds()))
}()

// Status reports whether the NSE session (09:15-15:30 IST, Mon-Fri) is
// open at the given instant.
func Status(now time.Time) string {
	t := now.In(ist)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return "CLOSED"
	}
	minutes := t.Hour()*60 + t.Minute()
	if minutes >= 9*60+15 && minutes <= 15*60+30 {
		return "OPEN"
	}
	return "CLOSED"
}
