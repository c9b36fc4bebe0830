package stats

import "strings"

// Extract pulls one numeric metric per item.
func Extract[T any](items []T, metric func(T) float64) []float64 {
	out := make([]float64, 0, len(items))
	for _, it := range items {
		out = append(out, metric(it))
	}
	return out
}

// Buckets counts items per categorical value. Blank values are grouped under
// unknown.
type Buckets struct {
	counts  map[string]int
	unknown string
}

// CountBuckets groups items by key, sending empty keys to unknown.
func CountBuckets[T any](items []T, key func(T) string, unknown string) Buckets {
	b := Buckets{counts: make(map[string]int), unknown: unknown}
	for _, it := range items {
		b.counts[b.Normalize(key(it))]++
	}
	return b
}

// Normalize maps a raw bucket value onto its counted key.
func (b Buckets) Normalize(v string) string {
	if strings.TrimSpace(v) == "" {
		return b.unknown
	}
	return v
}

// Count returns the population of bucket v.
func (b Buckets) Count(v string) int {
	return b.counts[b.Normalize(v)]
}

// Values returns the per-bucket counts as a population for scaling.
func (b Buckets) Values() []float64 {
	out := make([]float64, 0, len(b.counts))
	for _, n := range b.counts {
		out = append(out, float64(n))
	}
	return Sorted(out)
}

// Counts returns a copy of the per-bucket counts.
func (b Buckets) Counts() map[string]int {
	out := make(map[string]int, len(b.counts))
	for k, v := range b.counts {
		out[k] = v
	}
	return out
}

// IsUnknown reports whether v falls into the unknown bucket.
func (b Buckets) IsUnknown(v string) bool {
	return b.Normalize(v) == b.unknown
}
