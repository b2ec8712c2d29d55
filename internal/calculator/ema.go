package calculator

// EMA computes an exponential moving average over prices with smoothing
// constant k = 2/(period+1). The output has the same length as the input.
// The series is seeded with the first raw price rather than an SMA warm-up,
// so the first ~period outputs carry transient bias; callers must fetch
// enough lead-in history (50+ extra trading days) and discard it before
// reporting.
func EMA(prices []float64, period int) []float64 {
	if len(prices) == 0 {
		return nil
	}
	k := smoothing(period)
	emas := make([]float64, len(prices))
	emas[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		emas[i] = prices[i]*k + emas[i-1]*(1-k)
	}
	return emas
}

// ContinueEMA extends an EMA from a previously computed smoothed value.
// Every output, including the first, is prices[i]*k + prev*(1-k). Feeding
// it the tail of a price series with the prior EMA as prev yields exactly
// the values a full cold-start computation would have produced.
func ContinueEMA(prices []float64, period int, prev float64) []float64 {
	if len(prices) == 0 {
		return nil
	}
	k := smoothing(period)
	emas := make([]float64, len(prices))
	for i, p := range prices {
		prev = p*k + prev*(1-k)
		emas[i] = prev
	}
	return emas
}

// TrendDistance returns the percent distance of each price from its
// period-EMA: (price - ema) / ema * 100.
func TrendDistance(prices []float64, period int) []float64 {
	emas := EMA(prices, period)
	dist := make([]float64, len(prices))
	for i, p := range prices {
		if emas[i] != 0 {
			dist[i] = (p - emas[i]) / emas[i] * 100
		}
	}
	return dist
}

func smoothing(period int) float64 {
	if period < 1 {
		period = 1
	}
	return 2.0 / (float64(period) + 1)
}
