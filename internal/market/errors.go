package market

import (
	"context"
	"errors"
	"fmt"

	"stockdesk/internal/provider"
)

// Kind classifies every failure a data-access operation can surface.
type Kind int

const (
	// KindInvalidInput is an empty or malformed ticker/query.
	KindInvalidInput Kind = iota
	// KindUpstreamUnavailable is a transport failure, timeout or non-2xx.
	KindUpstreamUnavailable
	// KindUpstreamDataMalformed is a 2xx response that could not be used.
	KindUpstreamDataMalformed
	// KindNoDataForSymbol is a well-formed response with an empty result.
	KindNoDataForSymbol
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindUpstreamDataMalformed:
		return "upstream_data_malformed"
	case KindNoDataForSymbol:
		return "no_data_for_symbol"
	default:
		return "unknown"
	}
}

// Error is the tagged result every operation collapses its failures
// into. Nothing escapes the data-access layer in any other form.
type Error struct {
	Kind    Kind
	Symbol  string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Symbol, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, symbol, format string, args ...any) *Error {
	return &Error{Kind: kind, Symbol: symbol, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the taxonomy kind from any error returned by this
// package. Unknown errors report as upstream-unavailable.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstreamUnavailable
}

// classify converts a raw provider error into a tagged one.
func classify(err error, symbol string) *Error {
	switch {
	case errors.Is(err, provider.ErrNoData):
		return &Error{Kind: KindNoDataForSymbol, Symbol: symbol,
			Message: fmt.Sprintf("no data available for %s", symbol), cause: err}
	case errors.Is(err, provider.ErrMalformed):
		return &Error{Kind: KindUpstreamDataMalformed, Symbol: symbol,
			Message: fmt.Sprintf("upstream returned unusable data for %s", symbol), cause: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Error{Kind: KindUpstreamUnavailable, Symbol: symbol,
			Message: fmt.Sprintf("fetch for %s timed out", symbol), cause: err}
	default:
		return &Error{Kind: KindUpstreamUnavailable, Symbol: symbol,
			Message: fmt.Sprintf("failed to fetch data for %s: %v", symbol, err), cause: err}
	}
}
