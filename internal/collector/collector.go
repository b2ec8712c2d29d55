package collector

import (
	"fmt"
	"time"

	"BreadthSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// With a nil Histories map it generates a drifting close series instead.
type MockFetcher struct {
	Constituents []model.Constituent
	Histories    map[string][]model.PricePoint
	Failures     map[string]error // per-symbol history failures
	ListErr      error            // constituent fetch failure
	Price        float64          // base price for generated histories
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchConstituents() ([]model.Constituent, error) {
	if m.ListErr != nil {
		return nil, &UpstreamError{Op: "constituents", Err: m.ListErr}
	}
	return m.Constituents, nil
}

func (m *MockFetcher) FetchDailyCloses(symbol string, days int) ([]model.PricePoint, error) {
	if err := m.Failures[symbol]; err != nil {
		return nil, &UpstreamError{Op: "history", Symbol: symbol, Err: err}
	}
	if m.Histories == nil {
		return GenerateMockCloses(m.Price, 0.1, days, time.Now()), nil
	}
	history, ok := m.Histories[symbol]
	if !ok {
		return nil, &UpstreamError{Op: "history", Symbol: symbol, Err: fmt.Errorf("unknown symbol")}
	}
	if len(history) > days {
		history = history[len(history)-days:]
	}
	return history, nil
}

// GenerateMockCloses builds count trading-day closes ending at end, with a
// constant daily drift. Weekends are skipped so dates look like real
// trading days.
func GenerateMockCloses(basePrice, drift float64, count int, end time.Time) []model.PricePoint {
	points := make([]model.PricePoint, count)
	day := end
	for i := count - 1; i >= 0; i-- {
		for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, -1)
		}
		points[i] = model.PricePoint{
			Date:  day.Format("2006-01-02"),
			Close: basePrice + drift*float64(i),
		}
		day = day.AddDate(0, 0, -1)
	}
	return points
}
