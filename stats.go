package lumen

import "math"

// Shared numeric helpers for the analytics engines.

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddevPop is the population standard deviation.
func stddevPop(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := meanOf(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// quantile returns the q-th quantile (0..1) of an ascending-sorted slice,
// interpolating linearly between ranks.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// olsFit computes ordinary least-squares slope and intercept of values
// against their position index 0..n-1.
func olsFit(values []float64) (slope, intercept float64) {
	n := float64(len(values))
	if len(values) == 0 {
		return 0, 0
	}
	if len(values) == 1 {
		return 0, values[0]
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// residualStddev is the population standard deviation of actual minus fitted.
func residualStddev(actual, fitted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(fitted) {
		return 0
	}
	sumSq := 0.0
	for i, a := range actual {
		d := a - fitted[i]
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(actual)))
}

// normalQuantile returns z such that a standard normal variable lies in
// [-z, z] with probability p.
func normalQuantile(p float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		p = 1 - 1e-12
	}
	return math.Sqrt2 * math.Erfinv(p)
}
