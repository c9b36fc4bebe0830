package stats

// Scaled maps value into [0,1] against the q10/q90 band of population.
func Scaled(value float64, population []float64) float64 {
	return ScaledDefined(value, population, q10, q90)
}

// ScaledDefined maps value into [0,1] against the [lowQ, highQ] quantile band
// of population: 0 at or below the low cutoff, 1 at or above the high cutoff,
// linear in between. An empty population scores 0.
func ScaledDefined(value float64, population []float64, lowQ, highQ float64) float64 {
	if len(population) == 0 {
		return 0
	}
	sorted := Sorted(population)
	low := Quantile(sorted, lowQ)
	high := Quantile(sorted, highQ)
	switch {
	case value <= low:
		return 0
	case value >= high:
		return 1
	}
	return (value - low) / (high - low)
}
