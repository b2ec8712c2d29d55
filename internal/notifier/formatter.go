package notifier

import (
	"fmt"
	"strings"

	"BreadthSentinel/internal/model"
)

// Zone labels the breadth reading. Bands follow the usual reading of the
// %-above-EMA oscillator: washed-out under 20, stretched over 80.
func Zone(pct float64) string {
	switch {
	case pct < 20:
		return "oversold"
	case pct < 40:
		return "weak"
	case pct < 60:
		return "neutral"
	case pct < 80:
		return "strong"
	default:
		return "overbought"
	}
}

// FormatDailySummary formats the latest breadth reading into a Telegram
// message. trend may be empty when the index fetch failed.
func FormatDailySummary(series []model.BreadthPoint, trend []model.TrendPoint) string {
	if len(series) == 0 {
		return "📊 <b>BreadthSentinel</b>\n\nNo breadth data available yet."
	}
	latest := series[len(series)-1]

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>BreadthSentinel</b> | %s\n\n", latest.Date))
	b.WriteString(fmt.Sprintf("Above 20d EMA: <b>%.1f%%</b> (%s)\n", latest.PercentageAbove, Zone(latest.PercentageAbove)))

	if len(series) > 1 {
		prev := series[len(series)-2]
		delta := latest.PercentageAbove - prev.PercentageAbove
		b.WriteString(fmt.Sprintf("Change vs %s: %+.1f pp\n", prev.Date, delta))
	}

	if len(trend) > 0 {
		t := trend[len(trend)-1]
		b.WriteString(fmt.Sprintf("\nIndex vs 50d EMA: %+.2f%% (close %.2f)\n", t.Distance, t.Close))
	}

	return b.String()
}

// FormatTrend formats the latest index trend-distance reading.
func FormatTrend(trend []model.TrendPoint) string {
	if len(trend) == 0 {
		return "📈 <b>BreadthSentinel</b>\n\nNo index data available."
	}
	t := trend[len(trend)-1]
	return fmt.Sprintf("📈 <b>BreadthSentinel</b> | %s\n\nIndex close: %.2f\nDistance from 50d EMA: %+.2f%%\n", t.Date, t.Close, t.Distance)
}
