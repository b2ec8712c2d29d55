package store

import (
	"sort"
	"sync"

	"BreadthSentinel/internal/model"
)

// MemoryStore is an in-memory Store used in tests and as a fallback when
// the SQLite database cannot be opened. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.Mutex
	series map[string]float64
	states map[string]model.SymbolState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		series: make(map[string]float64),
		states: make(map[string]model.SymbolState),
	}
}

func (m *MemoryStore) LoadSeries() ([]model.BreadthPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	points := make([]model.BreadthPoint, 0, len(m.series))
	for date, pct := range m.series {
		points = append(points, model.BreadthPoint{Date: date, PercentageAbove: pct})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}

func (m *MemoryStore) SaveSeries(points []model.BreadthPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range points {
		m.series[p.Date] = p.PercentageAbove
	}
	return nil
}

func (m *MemoryStore) LoadSymbolStates() ([]model.SymbolState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make([]model.SymbolState, 0, len(m.states))
	for _, st := range m.states {
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Symbol < states[j].Symbol })
	return states, nil
}

func (m *MemoryStore) SaveSymbolStates(states []model.SymbolState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, st := range states {
		m.states[st.Symbol] = st
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
