// Package stats computes order statistics over candidate populations and the
// quantile-clamped normalisation used by the scorer.
package stats

import (
	"math"
	"sort"
)

// Quantile cutoffs reported by GetStats and used by Scaled.
const (
	q10 = 0.10
	q25 = 0.25
	q50 = 0.50
	q75 = 0.75
	q90 = 0.90
)

// Summary is the order-statistics snapshot of one metric.
type Summary struct {
	Values []float64 `json:"values"`
	Min    float64   `json:"absoluteMin"`
	Max    float64   `json:"absoluteMax"`
	Q10    float64   `json:"q10"`
	Q25    float64   `json:"q25"`
	Q50    float64   `json:"median"`
	Q75    float64   `json:"q75"`
	Q90    float64   `json:"q90"`
	Mean   float64   `json:"mean"`
	StdDev float64   `json:"standardDeviation"`
}

// GetStats summarises values. An empty input yields a zero Summary.
func GetStats(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := Sorted(values)
	return Summary{
		Values: sorted,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Q10:    Quantile(sorted, q10),
		Q25:    Quantile(sorted, q25),
		Q50:    Quantile(sorted, q50),
		Q75:    Quantile(sorted, q75),
		Q90:    Quantile(sorted, q90),
		Mean:   Mean(sorted),
		StdDev: StdDev(sorted),
	}
}

// Sorted returns an ascending copy of values.
func Sorted(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

// Quantile interpolates linearly between the closest ranks of an ascending
// slice. It returns 0 for an empty slice.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := float64(len(sorted)-1) * q
	base := int(math.Floor(pos))
	if base < 0 {
		return sorted[0]
	}
	if base >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(base)
	return sorted[base] + frac*(sorted[base+1]-sorted[base])
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample standard deviation. Fewer than two values give 0.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)-1))
}
