// Package breadth turns per-symbol price histories into a persisted daily
// market-breadth series and extends it incrementally as new trading days
// arrive.
package breadth

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"BreadthSentinel/internal/batch"
	"BreadthSentinel/internal/calculator"
	"BreadthSentinel/internal/collector"
	"BreadthSentinel/internal/model"
	"BreadthSentinel/internal/store"
)

const dateLayout = "2006-01-02"

// DenominatorPolicy selects what a date's above-count is divided by.
type DenominatorPolicy string

const (
	// DenomSymbolsReporting divides by the number of symbols that actually
	// reported data for the date.
	DenomSymbolsReporting DenominatorPolicy = "symbols-reporting"
	// DenomFixedUniverse divides by a constant assumed universe size, so
	// missing symbols drag the percentage down.
	DenomFixedUniverse DenominatorPolicy = "fixed-universe-size"
)

// Config tunes the breadth engine.
type Config struct {
	EMAPeriod          int // short-term EMA the breadth condition tests against
	TrendPeriod        int // EMA for the index trend-distance series
	FullLookbackDays   int // history fetched per symbol on a cold start
	UpdateLookbackDays int // trailing window fetched per symbol on an update
	MinHistoryPoints   int // symbols with less history are discarded
	BatchSize          int
	DisplayDays        int
	IndexSymbol        string
	Denominator        DenominatorPolicy
	UniverseSize       int // denominator under DenomFixedUniverse
}

// minLeadIn is the smallest acceptable history length. Cold-start EMA is
// seeded with the first raw price, so the first ~period outputs are biased;
// at least this many lead-in days must exist for the series to converge.
const minLeadIn = 50

func (c Config) withDefaults() Config {
	if c.EMAPeriod <= 0 {
		c.EMAPeriod = 20
	}
	if c.TrendPeriod <= 0 {
		c.TrendPeriod = 50
	}
	if c.FullLookbackDays <= 0 {
		c.FullLookbackDays = 400
	}
	if c.UpdateLookbackDays <= 0 {
		c.UpdateLookbackDays = 5
	}
	if c.MinHistoryPoints < minLeadIn {
		c.MinHistoryPoints = minLeadIn
	}
	if c.BatchSize <= 0 {
		c.BatchSize = batch.DefaultSize
	}
	if c.DisplayDays <= 0 {
		c.DisplayDays = 252
	}
	if c.IndexSymbol == "" {
		c.IndexSymbol = "^GSPC"
	}
	if c.Denominator == "" {
		c.Denominator = DenomSymbolsReporting
	}
	if c.UniverseSize <= 0 {
		c.UniverseSize = 500
	}
	return c
}

// Progress reports pass progress, at least once per batch. Percentages are
// non-decreasing within one pass.
type Progress func(percent int, message string)

// Engine computes and maintains the breadth series. The store is the only
// shared mutable resource: read once at the start of a pass, written once
// at the end. Concurrent passes are not coordinated (single-writer
// assumption).
type Engine struct {
	fetcher collector.Fetcher
	store   store.Store
	cfg     Config

	// IsFresh decides whether a series ending at lastDate needs no refresh.
	// The default compares against the local calendar date, which can be a
	// trading day behind across time zones and on holidays; replace it with
	// a trading-calendar check if that matters.
	IsFresh func(lastDate string) bool
}

// NewEngine creates an engine around a price source and a persisted store.
func NewEngine(fetcher collector.Fetcher, st store.Store, cfg Config) *Engine {
	return &Engine{
		fetcher: fetcher,
		store:   st,
		cfg:     cfg.withDefaults(),
		IsFresh: func(lastDate string) bool {
			return lastDate == time.Now().Format(dateLayout)
		},
	}
}

// Current returns the breadth series, refreshing it first if it is stale.
// A fresh cached series is returned untouched. With no cache a full crunch
// runs; with a stale cache an incremental update runs. A fatal upstream
// error leaves the previous persisted series intact and the caller keeps
// whatever it had.
func (e *Engine) Current(ctx context.Context, onProgress Progress) ([]model.BreadthPoint, error) {
	if onProgress == nil {
		onProgress = func(int, string) {}
	}

	series, err := e.store.LoadSeries()
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}

	if len(series) > 0 {
		lastDate := series[len(series)-1].Date
		if e.IsFresh(lastDate) {
			onProgress(100, "Data is up to date.")
			return series, nil
		}
		onProgress(0, "Checking for updates...")
		return e.incrementalUpdate(ctx, series, onProgress)
	}

	return e.fullCrunch(ctx, onProgress)
}

// fullCrunch rebuilds the whole series: full history per constituent, cold
// EMA per symbol, aggregate per date, persist series and terminal states.
func (e *Engine) fullCrunch(ctx context.Context, onProgress Progress) ([]model.BreadthPoint, error) {
	onProgress(1, "Fetching constituent list...")
	constituents, err := e.fetcher.FetchConstituents()
	if err != nil {
		return nil, fmt.Errorf("fetch constituents: %w", err)
	}
	symbols := symbolsOf(constituents)

	acc := newAccumulator()
	states := newStateSet()

	op := func(_ context.Context, symbol string) error {
		history, err := e.fetcher.FetchDailyCloses(symbol, e.cfg.FullLookbackDays)
		if err != nil {
			return err
		}
		if len(history) < e.cfg.MinHistoryPoints {
			return fmt.Errorf("history too short: %d points, need %d", len(history), e.cfg.MinHistoryPoints)
		}
		sortByDate(history)

		emas := calculator.EMA(closesOf(history), e.cfg.EMAPeriod)
		for i, day := range history {
			acc.add(day.Date, day.Close > emas[i])
		}
		last := len(history) - 1
		states.put(model.SymbolState{Symbol: symbol, LastEMA: emas[last], Date: history[last].Date})
		return nil
	}

	err = batch.Run(ctx, symbols, e.cfg.BatchSize, op, func(processed, total int) {
		pct := percent(processed, total)
		onProgress(pct, fmt.Sprintf("Analyzing universe: %d%% complete", pct))
	})
	if err != nil {
		return nil, err
	}

	series := acc.points(e.cfg.Denominator, e.cfg.UniverseSize)
	if err := e.store.SaveSeries(series); err != nil {
		return nil, fmt.Errorf("save series: %w", err)
	}
	if err := e.store.SaveSymbolStates(states.all()); err != nil {
		return nil, fmt.Errorf("save symbol states: %w", err)
	}
	log.Printf("[INFO] full crunch complete: %d symbols, %d dates", states.len(), len(series))
	return series, nil
}

// incrementalUpdate extends the series: per symbol, fetch a short trailing
// window, keep only days strictly after its stored state date, continue the
// EMA from the stored value, and merge the touched dates into the existing
// series. Symbols with no stored state are skipped until the next full
// crunch rebuilds them.
func (e *Engine) incrementalUpdate(ctx context.Context, existing []model.BreadthPoint, onProgress Progress) ([]model.BreadthPoint, error) {
	onProgress(5, "Updating market breadth...")
	constituents, err := e.fetcher.FetchConstituents()
	if err != nil {
		return nil, fmt.Errorf("fetch constituents: %w", err)
	}
	symbols := symbolsOf(constituents)

	stored, err := e.store.LoadSymbolStates()
	if err != nil {
		return nil, fmt.Errorf("load symbol states: %w", err)
	}
	stateBySymbol := make(map[string]model.SymbolState, len(stored))
	for _, st := range stored {
		stateBySymbol[st.Symbol] = st
	}

	acc := newAccumulator()
	states := newStateSet()

	op := func(_ context.Context, symbol string) error {
		state, ok := stateBySymbol[symbol]
		if !ok {
			// No safe way to continue the EMA without full history.
			return nil
		}

		history, err := e.fetcher.FetchDailyCloses(symbol, e.cfg.UpdateLookbackDays)
		if err != nil {
			return err
		}
		sortByDate(history)

		newDays := history[:0:0]
		for _, day := range history {
			if afterDate(day.Date, state.Date) {
				newDays = append(newDays, day)
			}
		}
		if len(newDays) == 0 {
			states.put(state) // carry forward unchanged
			return nil
		}

		emas := calculator.ContinueEMA(closesOf(newDays), e.cfg.EMAPeriod, state.LastEMA)
		for i, day := range newDays {
			acc.add(day.Date, day.Close > emas[i])
		}
		last := len(newDays) - 1
		states.put(model.SymbolState{Symbol: symbol, LastEMA: emas[last], Date: newDays[last].Date})
		return nil
	}

	err = batch.Run(ctx, symbols, e.cfg.BatchSize, op, func(processed, total int) {
		onProgress(percent(processed, total), "Updating...")
	})
	if err != nil {
		return nil, err
	}

	// Existing points for untouched dates are kept; touched dates are
	// replaced by this pass's computation.
	fresh := acc.points(e.cfg.Denominator, e.cfg.UniverseSize)
	merged := make([]model.BreadthPoint, 0, len(existing)+len(fresh))
	for _, p := range existing {
		if !acc.touched(p.Date) {
			merged = append(merged, p)
		}
	}
	merged = append(merged, fresh...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date < merged[j].Date })

	if err := e.store.SaveSeries(merged); err != nil {
		return nil, fmt.Errorf("save series: %w", err)
	}
	if err := e.store.SaveSymbolStates(states.all()); err != nil {
		return nil, fmt.Errorf("save symbol states: %w", err)
	}
	log.Printf("[INFO] incremental update complete: %d dates touched", len(fresh))
	return merged, nil
}

// accumulator aggregates per-date above/total counts. Batch operations run
// in parallel, so updates are locked.
type accumulator struct {
	mu    sync.Mutex
	dates map[string]*dateCount
}

type dateCount struct {
	above int
	total int
}

func newAccumulator() *accumulator {
	return &accumulator{dates: make(map[string]*dateCount)}
}

func (a *accumulator) add(date string, above bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.dates[date]
	if !ok {
		c = &dateCount{}
		a.dates[date] = c
	}
	c.total++
	if above {
		c.above++
	}
}

func (a *accumulator) touched(date string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.dates[date]
	return ok
}

// points converts the accumulated counts to a breadth series sorted by
// date ascending.
func (a *accumulator) points(policy DenominatorPolicy, universeSize int) []model.BreadthPoint {
	a.mu.Lock()
	defer a.mu.Unlock()

	points := make([]model.BreadthPoint, 0, len(a.dates))
	for date, c := range a.dates {
		denom := c.total
		if policy == DenomFixedUniverse {
			denom = universeSize
		}
		if denom == 0 {
			continue
		}
		pct := float64(c.above) / float64(denom) * 100
		if pct > 100 {
			pct = 100
		}
		points = append(points, model.BreadthPoint{Date: date, PercentageAbove: pct})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}

// stateSet collects terminal symbol states from concurrent batch operations.
type stateSet struct {
	mu     sync.Mutex
	states map[string]model.SymbolState
}

func newStateSet() *stateSet {
	return &stateSet{states: make(map[string]model.SymbolState)}
}

func (s *stateSet) put(st model.SymbolState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.Symbol] = st
}

func (s *stateSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

func (s *stateSet) all() []model.SymbolState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SymbolState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func symbolsOf(constituents []model.Constituent) []string {
	symbols := make([]string, len(constituents))
	for i, c := range constituents {
		symbols[i] = c.Symbol
	}
	return symbols
}

func closesOf(points []model.PricePoint) []float64 {
	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}
	return closes
}

func sortByDate(points []model.PricePoint) {
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
}

// afterDate reports whether a falls strictly after b as calendar dates.
func afterDate(a, b string) bool {
	ta, errA := time.Parse(dateLayout, a)
	tb, errB := time.Parse(dateLayout, b)
	if errA != nil || errB != nil {
		return a > b
	}
	return ta.After(tb)
}

func percent(processed, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(processed) / float64(total) * 100))
}
