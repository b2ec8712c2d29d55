package breadth

import (
	"fmt"

	"BreadthSentinel/internal/calculator"
	"BreadthSentinel/internal/model"
)

// TrendSeries returns the index's percent distance from its trend EMA over
// the display window. Computed on demand from the index history, never
// persisted.
func (e *Engine) TrendSeries() ([]model.TrendPoint, error) {
	history, err := e.fetcher.FetchDailyCloses(e.cfg.IndexSymbol, e.cfg.FullLookbackDays)
	if err != nil {
		return nil, fmt.Errorf("fetch index history: %w", err)
	}
	if len(history) < e.cfg.MinHistoryPoints {
		return nil, fmt.Errorf("index history too short: %d points, need %d",
			len(history), e.cfg.MinHistoryPoints)
	}
	sortByDate(history)

	dist := calculator.TrendDistance(closesOf(history), e.cfg.TrendPeriod)
	points := make([]model.TrendPoint, len(history))
	for i, day := range history {
		points[i] = model.TrendPoint{Date: day.Date, Close: day.Close, Distance: dist[i]}
	}
	if len(points) > e.cfg.DisplayDays {
		points = points[len(points)-e.cfg.DisplayDays:]
	}
	return points, nil
}
