package collector

import (
	"fmt"

	"BreadthSentinel/internal/model"
)

// Fetcher defines the interface for fetching universe and price data.
type Fetcher interface {
	// FetchConstituents returns the current symbol universe.
	FetchConstituents() ([]model.Constituent, error)
	// FetchDailyCloses returns up to days end-of-day closes for symbol.
	// Order is not guaranteed; callers must sort by date.
	FetchDailyCloses(symbol string, days int) ([]model.PricePoint, error)
	Name() string
}

// UpstreamError reports a failure talking to the price source. A failed
// constituent fetch is fatal to a pass; a failed per-symbol history fetch
// is soft and only removes that symbol's contribution.
type UpstreamError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("upstream %s %s: %v", e.Op, e.Symbol, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
