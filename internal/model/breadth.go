package model

// Constituent is one member of the tracked index universe.
type Constituent struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Sector string `json:"sector"`
}

// PricePoint is a single end-of-day close. Dates are ISO-8601 calendar
// date strings (YYYY-MM-DD), one point per trading day per symbol.
type PricePoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// SymbolState is the smoothing state needed to continue a symbol's EMA
// without re-reading its full history. One live instance per symbol,
// overwritten on each update. Date only moves forward.
type SymbolState struct {
	Symbol  string  `json:"symbol"`
	LastEMA float64 `json:"lastEma"`
	Date    string  `json:"date"`
}

// BreadthPoint is one day of the breadth series: the percentage of the
// universe that closed above its short-term EMA, in [0, 100].
type BreadthPoint struct {
	Date            string  `json:"date"`
	PercentageAbove float64 `json:"percentageAbove"`
}

// TrendPoint is one day of the index trend-distance series: percent
// distance of the index close from its trend EMA.
type TrendPoint struct {
	Date     string  `json:"date"`
	Close    float64 `json:"close"`
	Distance float64 `json:"distance"`
}
