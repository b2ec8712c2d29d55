package breadth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"BreadthSentinel/internal/collector"
	"BreadthSentinel/internal/model"
	"BreadthSentinel/internal/store"
)

// tradingDates returns n consecutive weekdays ending on end (inclusive,
// assuming end itself is a weekday).
func tradingDates(end string, n int) []string {
	day, err := time.Parse("2006-01-02", end)
	if err != nil {
		panic(err)
	}
	out := make([]string, n)
	for i := n - 1; i >= 0; i-- {
		for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, -1)
		}
		out[i] = day.Format("2006-01-02")
		day = day.AddDate(0, 0, -1)
	}
	return out
}

func historyFor(dates []string, base, drift float64) []model.PricePoint {
	points := make([]model.PricePoint, len(dates))
	for i, d := range dates {
		points[i] = model.PricePoint{Date: d, Close: base + drift*float64(i)}
	}
	return points
}

func constituents(symbols ...string) []model.Constituent {
	cons := make([]model.Constituent, len(symbols))
	for i, s := range symbols {
		cons[i] = model.Constituent{Symbol: s, Name: s + " Inc", Sector: "Test"}
	}
	return cons
}

func neverFresh(string) bool { return false }

func containsPct(set []float64, v float64) bool {
	for _, s := range set {
		if math.Abs(s-v) < 0.01 {
			return true
		}
	}
	return false
}

func TestFullCrunch_RisingUniverse(t *testing.T) {
	dates := tradingDates("2024-01-10", 60)
	fetcher := &collector.MockFetcher{
		Constituents: constituents("A", "B", "C"),
		Histories: map[string][]model.PricePoint{
			"A": historyFor(dates, 100, 1),
			"B": historyFor(dates, 50, 0.5),
			"C": historyFor(dates, 200, 2),
		},
	}
	st := store.NewMemoryStore()
	e := NewEngine(fetcher, st, Config{})

	var lastPct int
	series, err := e.Current(context.Background(), func(pct int, _ string) {
		if pct < lastPct {
			t.Errorf("progress went backwards: %d after %d", pct, lastPct)
		}
		lastPct = pct
	})
	if err != nil {
		t.Fatalf("full crunch: %v", err)
	}

	if len(series) != 60 {
		t.Fatalf("series has %d dates, want 60", len(series))
	}
	// With 3 symbols, breadth per date is quantized to thirds.
	allowed := []float64{0, 100.0 / 3, 200.0 / 3, 100}
	for _, p := range series {
		if !containsPct(allowed, p.PercentageAbove) {
			t.Errorf("%s: PercentageAbove = %f, not a multiple of 1/3", p.Date, p.PercentageAbove)
		}
		if p.PercentageAbove < 0 || p.PercentageAbove > 100 {
			t.Errorf("%s: PercentageAbove = %f out of [0,100]", p.Date, p.PercentageAbove)
		}
	}

	states, err := st.LoadSymbolStates()
	if err != nil {
		t.Fatalf("load states: %v", err)
	}
	if len(states) != 3 {
		t.Fatalf("persisted %d states, want 3", len(states))
	}
	for _, s := range states {
		if s.Date != dates[len(dates)-1] {
			t.Errorf("%s state date = %s, want %s", s.Symbol, s.Date, dates[len(dates)-1])
		}
	}
}

func TestFullCrunch_ConstituentFailureIsFatal(t *testing.T) {
	fetcher := &collector.MockFetcher{ListErr: errors.New("503")}
	e := NewEngine(fetcher, store.NewMemoryStore(), Config{})

	if _, err := e.Current(context.Background(), nil); err == nil {
		t.Fatal("expected error when constituent list is unavailable")
	}
}

func TestFullCrunch_ShortHistoryDiscarded(t *testing.T) {
	dates := tradingDates("2024-01-10", 60)
	fetcher := &collector.MockFetcher{
		Constituents: constituents("A", "B", "SHORT"),
		Histories: map[string][]model.PricePoint{
			"A":     historyFor(dates, 100, 1),
			"B":     historyFor(dates, 50, 0.5),
			"SHORT": historyFor(dates[len(dates)-49:], 10, 1), // one under the lead-in minimum
		},
	}
	st := store.NewMemoryStore()
	// MinHistoryPoints below the lead-in floor is clamped up to it.
	e := NewEngine(fetcher, st, Config{MinHistoryPoints: 1})

	series, err := e.Current(context.Background(), nil)
	if err != nil {
		t.Fatalf("full crunch: %v", err)
	}
	for _, p := range series {
		if !containsPct([]float64{0, 50, 100}, p.PercentageAbove) {
			t.Errorf("%s: pct %f implies more than 2 reporting symbols", p.Date, p.PercentageAbove)
		}
	}
	states, _ := st.LoadSymbolStates()
	for _, s := range states {
		if s.Symbol == "SHORT" {
			t.Error("discarded symbol must not get a persisted state")
		}
	}
}

func TestFullCrunch_SymbolFailureIsIsolated(t *testing.T) {
	dates := tradingDates("2024-01-10", 60)
	fetcher := &collector.MockFetcher{
		Constituents: constituents("A", "B", "C"),
		Histories: map[string][]model.PricePoint{
			"A": historyFor(dates, 100, 1),
			"B": historyFor(dates, 50, 0.5),
		},
		Failures: map[string]error{"C": errors.New("timeout")},
	}
	st := store.NewMemoryStore()
	e := NewEngine(fetcher, st, Config{})

	series, err := e.Current(context.Background(), nil)
	if err != nil {
		t.Fatalf("pass aborted by soft failure: %v", err)
	}
	if len(series) != 60 {
		t.Fatalf("series has %d dates, want 60", len(series))
	}
	// A failed symbol is absent, never counted as "below": with 2 reporting
	// symbols the only reachable values are halves.
	for _, p := range series {
		if !containsPct([]float64{0, 50, 100}, p.PercentageAbove) {
			t.Errorf("%s: pct %f implies the failed symbol contributed", p.Date, p.PercentageAbove)
		}
	}
	states, _ := st.LoadSymbolStates()
	if len(states) != 2 {
		t.Errorf("persisted %d states, want 2", len(states))
	}
}

func TestFullCrunch_FixedUniverseDenominator(t *testing.T) {
	dates := tradingDates("2024-01-10", 60)
	fetcher := &collector.MockFetcher{
		Constituents: constituents("A", "B"),
		Histories: map[string][]model.PricePoint{
			"A": historyFor(dates, 100, 1),
			"B": historyFor(dates, 50, 0.5),
		},
	}
	e := NewEngine(fetcher, store.NewMemoryStore(), Config{
		Denominator:  DenomFixedUniverse,
		UniverseSize: 4,
	})

	series, err := e.Current(context.Background(), nil)
	if err != nil {
		t.Fatalf("full crunch: %v", err)
	}
	// Both symbols above their EMA still only reach 2/4 of the universe.
	last := series[len(series)-1]
	if math.Abs(last.PercentageAbove-50) > 0.01 {
		t.Errorf("last pct = %f, want 50 under fixed-universe denominator", last.PercentageAbove)
	}
}

func TestCurrent_FreshCacheReturnedUntouched(t *testing.T) {
	st := store.NewMemoryStore()
	cached := []model.BreadthPoint{
		{Date: "2024-01-09", PercentageAbove: 40},
		{Date: "2024-01-10", PercentageAbove: 55},
	}
	if err := st.SaveSeries(cached); err != nil {
		t.Fatal(err)
	}

	// A fetcher that always fails proves the upstream is never consulted.
	fetcher := &collector.MockFetcher{ListErr: errors.New("unreachable")}
	e := NewEngine(fetcher, st, Config{})
	e.IsFresh = func(lastDate string) bool { return lastDate == "2024-01-10" }

	series, err := e.Current(context.Background(), nil)
	if err != nil {
		t.Fatalf("fresh cache path hit upstream: %v", err)
	}
	if len(series) != 2 || series[1].PercentageAbove != 55 {
		t.Errorf("cached series modified: %+v", series)
	}
}

// incrementalFixture preloads a store with a series through 2024-01-10 and
// per-symbol states, and a fetcher whose 5-day window ends 2024-01-11.
func incrementalFixture(t *testing.T, symbols ...string) (*collector.MockFetcher, *store.MemoryStore, *Engine) {
	t.Helper()
	st := store.NewMemoryStore()
	existing := []model.BreadthPoint{
		{Date: "2024-01-08", PercentageAbove: 40},
		{Date: "2024-01-09", PercentageAbove: 45},
		{Date: "2024-01-10", PercentageAbove: 55},
	}
	if err := st.SaveSeries(existing); err != nil {
		t.Fatal(err)
	}

	window := tradingDates("2024-01-11", 5) // 2024-01-05 .. 2024-01-11
	fetcher := &collector.MockFetcher{
		Constituents: constituents(symbols...),
		Histories:    map[string][]model.PricePoint{},
	}
	var states []model.SymbolState
	for i, sym := range symbols {
		base := 100 + float64(i)*50
		fetcher.Histories[sym] = historyFor(window, base, 1)
		states = append(states, model.SymbolState{Symbol: sym, LastEMA: base / 2, Date: "2024-01-10"})
	}
	if err := st.SaveSymbolStates(states); err != nil {
		t.Fatal(err)
	}

	e := NewEngine(fetcher, st, Config{})
	e.IsFresh = neverFresh
	return fetcher, st, e
}

func TestIncremental_AppendsOneNewDay(t *testing.T) {
	_, st, e := incrementalFixture(t, "A", "B", "C")

	series, err := e.Current(context.Background(), nil)
	if err != nil {
		t.Fatalf("incremental update: %v", err)
	}

	if len(series) != 4 {
		t.Fatalf("series has %d dates, want 4", len(series))
	}
	if series[3].Date != "2024-01-11" {
		t.Errorf("appended date = %s, want 2024-01-11", series[3].Date)
	}
	// Untouched historical points survive the merge unchanged.
	if series[0].PercentageAbove != 40 || series[1].PercentageAbove != 45 || series[2].PercentageAbove != 55 {
		t.Errorf("historical points modified: %+v", series[:3])
	}
	// All three symbols close above their continued EMA.
	if math.Abs(series[3].PercentageAbove-100) > 0.01 {
		t.Errorf("new pct = %f, want 100", series[3].PercentageAbove)
	}

	states, _ := st.LoadSymbolStates()
	for _, s := range states {
		if s.Date != "2024-01-11" {
			t.Errorf("%s state date = %s, want 2024-01-11", s.Symbol, s.Date)
		}
	}
}

func TestIncremental_SecondRunSameDayIsIdempotent(t *testing.T) {
	_, _, e := incrementalFixture(t, "A", "B", "C")

	first, err := e.Current(context.Background(), nil)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	second, err := e.Current(context.Background(), nil)
	if err != nil {
		t.Fatalf("second update: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("second run changed series length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("point %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestIncremental_StatelessSymbolSkipped(t *testing.T) {
	fetcher, st, e := incrementalFixture(t, "A", "B")
	// NEW is a constituent with price data but no stored smoothing state.
	fetcher.Constituents = constituents("A", "B", "NEW")
	fetcher.Histories["NEW"] = historyFor(tradingDates("2024-01-11", 5), 300, 1)

	series, err := e.Current(context.Background(), nil)
	if err != nil {
		t.Fatalf("incremental update: %v", err)
	}

	// Only A and B contribute to the new date.
	last := series[len(series)-1]
	if !containsPct([]float64{0, 50, 100}, last.PercentageAbove) {
		t.Errorf("new pct = %f, stateless symbol appears to have contributed", last.PercentageAbove)
	}
	states, _ := st.LoadSymbolStates()
	for _, s := range states {
		if s.Symbol == "NEW" {
			t.Error("stateless symbol must stay stateless until a full crunch")
		}
	}
}

func TestIncremental_DroppedConstituentKeepsHistory(t *testing.T) {
	fetcher, st, e := incrementalFixture(t, "A", "B", "C")
	// C leaves the index before this pass.
	fetcher.Constituents = constituents("A", "B")

	series, err := e.Current(context.Background(), nil)
	if err != nil {
		t.Fatalf("incremental update: %v", err)
	}

	// Historical dates are untouched; C's old contributions stay baked in.
	if series[0].PercentageAbove != 40 || series[2].PercentageAbove != 55 {
		t.Errorf("historical points modified: %+v", series[:3])
	}
	// C's stored state is not advanced.
	states, _ := st.LoadSymbolStates()
	for _, s := range states {
		if s.Symbol == "C" && s.Date != "2024-01-10" {
			t.Errorf("dropped symbol state advanced to %s", s.Date)
		}
	}
}

func TestIncremental_ConstituentFailureKeepsCachedSeries(t *testing.T) {
	fetcher, st, e := incrementalFixture(t, "A", "B", "C")
	fetcher.ListErr = errors.New("503")

	if _, err := e.Current(context.Background(), nil); err == nil {
		t.Fatal("expected fatal error from constituent fetch")
	}
	// The previous persisted series is left intact for the caller.
	series, _ := st.LoadSeries()
	if len(series) != 3 || series[2].Date != "2024-01-10" {
		t.Errorf("persisted series corrupted by aborted pass: %+v", series)
	}
}

func TestCurrent_CancelledMidCrunch(t *testing.T) {
	dates := tradingDates("2024-01-10", 60)
	histories := map[string][]model.PricePoint{}
	var symbols []string
	for i := 0; i < 30; i++ {
		sym := fmt.Sprintf("S%02d", i)
		symbols = append(symbols, sym)
		histories[sym] = historyFor(dates, 100, 1)
	}
	fetcher := &collector.MockFetcher{Constituents: constituents(symbols...), Histories: histories}
	st := store.NewMemoryStore()
	e := NewEngine(fetcher, st, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := e.Current(ctx, func(pct int, _ string) {
		if pct >= 30 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	// A cancelled pass persists nothing.
	series, _ := st.LoadSeries()
	if len(series) != 0 {
		t.Errorf("cancelled pass persisted %d points", len(series))
	}
}

func TestTrendSeries_WindowAndValues(t *testing.T) {
	dates := tradingDates("2024-01-10", 300)
	fetcher := &collector.MockFetcher{
		Histories: map[string][]model.PricePoint{
			"^GSPC": historyFor(dates, 4000, 2),
		},
	}
	e := NewEngine(fetcher, store.NewMemoryStore(), Config{})

	points, err := e.TrendSeries()
	if err != nil {
		t.Fatalf("trend series: %v", err)
	}
	if len(points) != 252 {
		t.Fatalf("trend window = %d points, want 252", len(points))
	}
	// Steady uptrend keeps the index above its trend EMA.
	if points[len(points)-1].Distance <= 0 {
		t.Errorf("distance = %f, want positive in uptrend", points[len(points)-1].Distance)
	}
}
