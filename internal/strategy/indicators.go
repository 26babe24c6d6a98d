package strategy

import "math"

// rollingMean returns the trailing mean over at most window values including
// the current one. Shorter prefixes use however many values exist (min
// periods of one).
func rollingMean(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	var sum float64
	for i, v := range vals {
		sum += v
		n := window
		if i+1 < window {
			n = i + 1
		} else if i >= window {
			sum -= vals[i-window]
		}
		out[i] = sum / float64(n)
	}
	return out
}

// rollingMaxPrev returns, for each index, the maximum over the previous
// window values excluding the current one, so breakout levels never look at
// the bar being decided. The first element is NaN.
func rollingMaxPrev(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		max := vals[lo]
		for _, v := range vals[lo:i] {
			if v > max {
				max = v
			}
		}
		out[i] = max
	}
	return out
}

// rollingMinPrev is the mirror of rollingMaxPrev.
func rollingMinPrev(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		min := vals[lo]
		for _, v := range vals[lo:i] {
			if v < min {
				min = v
			}
		}
		out[i] = min
	}
	return out
}

// relativeStrength computes a Wilder-smoothed RSI: gains and losses smoothed
// with an exponential mean of alpha = 1/period, with a small epsilon keeping
// the ratio defined when no losses occurred yet.
func relativeStrength(closes []float64, period int) []float64 {
	const eps = 1e-9

	out := make([]float64, len(closes))
	alpha := 1 / float64(period)

	var gainEMA, lossEMA float64
	for i := range closes {
		var gain, loss float64
		if i > 0 {
			delta := closes[i] - closes[i-1]
			if delta > 0 {
				gain = delta
			} else {
				loss = -delta
			}
		}
		if i == 0 {
			gainEMA = gain
			lossEMA = loss
		} else {
			gainEMA = alpha*gain + (1-alpha)*gainEMA
			lossEMA = alpha*loss + (1-alpha)*lossEMA
		}
		rs := gainEMA / (lossEMA + eps)
		out[i] = 100 - 100/(1+rs)
	}
	return out
}
