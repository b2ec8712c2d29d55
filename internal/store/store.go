package store

import "BreadthSentinel/internal/model"

// Store persists the breadth series and per-symbol smoothing state.
// Writes are last-write-wins per key and durable once the call returns.
type Store interface {
	// LoadSeries returns the persisted breadth series, ordered by date
	// ascending. An empty series is not an error.
	LoadSeries() ([]model.BreadthPoint, error)
	// SaveSeries upserts every point by date.
	SaveSeries(points []model.BreadthPoint) error
	LoadSymbolStates() ([]model.SymbolState, error)
	// SaveSymbolStates upserts every state by symbol.
	SaveSymbolStates(states []model.SymbolState) error
	Close() error
}
