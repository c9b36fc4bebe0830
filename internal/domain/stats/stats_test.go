package stats_test

import (
	"testing"

	"github.com/okian/otv/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGetStats(t *testing.T) {
	Convey("Given GetStats", t, func() {
		Convey("When the population is empty", func() {
			s := stats.GetStats(nil)

			Convey("Then it returns a zero summary", func() {
				So(s.Values, ShouldBeNil)
				So(s.Min, ShouldEqual, 0)
				So(s.Max, ShouldEqual, 0)
				So(s.Q50, ShouldEqual, 0)
				So(s.Mean, ShouldEqual, 0)
				So(s.StdDev, ShouldEqual, 0)
			})
		})

		Convey("When the population has one value", func() {
			s := stats.GetStats([]float64{7})

			Convey("Then min, max and mean equal it and stddev is 0", func() {
				So(s.Min, ShouldEqual, 7)
				So(s.Max, ShouldEqual, 7)
				So(s.Mean, ShouldEqual, 7)
				So(s.Q10, ShouldEqual, 7)
				So(s.Q90, ShouldEqual, 7)
				So(s.StdDev, ShouldEqual, 0)
			})
		})

		Convey("When the population is 1..5 unordered", func() {
			s := stats.GetStats([]float64{5, 3, 1, 4, 2})

			Convey("Then the order statistics interpolate", func() {
				So(s.Values, ShouldResemble, []float64{1, 2, 3, 4, 5})
				So(s.Min, ShouldEqual, 1)
				So(s.Max, ShouldEqual, 5)
				So(s.Q50, ShouldEqual, 3)
				So(s.Q25, ShouldEqual, 2)
				So(s.Q75, ShouldEqual, 4)
				So(s.Q10, ShouldAlmostEqual, 1.4, 1e-9)
				So(s.Q90, ShouldAlmostEqual, 4.6, 1e-9)
				So(s.Mean, ShouldEqual, 3)
				So(s.StdDev, ShouldAlmostEqual, 1.5811388, 1e-6)
			})
		})

		Convey("When the caller mutates its slice afterwards", func() {
			in := []float64{3, 1, 2}
			s := stats.GetStats(in)
			in[0] = 100

			Convey("Then the summary is unaffected", func() {
				So(s.Values, ShouldResemble, []float64{1, 2, 3})
			})
		})
	})
}

func TestQuantile(t *testing.T) {
	Convey("Given an ascending population of [100, 200]", t, func() {
		pop := []float64{100, 200}

		Convey("Then the 5th and 85th percentiles interpolate", func() {
			So(stats.Quantile(pop, 0.05), ShouldAlmostEqual, 105, 1e-9)
			So(stats.Quantile(pop, 0.85), ShouldAlmostEqual, 185, 1e-9)
		})

		Convey("Then the extremes return the endpoints", func() {
			So(stats.Quantile(pop, 0), ShouldEqual, 100)
			So(stats.Quantile(pop, 1), ShouldEqual, 200)
		})
	})
}

func TestScaledDefined(t *testing.T) {
	Convey("Given ScaledDefined", t, func() {
		pop := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

		Convey("When the population is empty", func() {
			So(stats.ScaledDefined(42, nil, 0.1, 0.9), ShouldEqual, 0)
			So(stats.Scaled(42, []float64{}), ShouldEqual, 0)
		})

		Convey("When the value is at or below the low cutoff", func() {
			low := stats.Quantile(pop, 0.1)
			So(stats.ScaledDefined(low, pop, 0.1, 0.9), ShouldEqual, 0)
			So(stats.ScaledDefined(-5, pop, 0.1, 0.9), ShouldEqual, 0)
		})

		Convey("When the value is at or above the high cutoff", func() {
			high := stats.Quantile(pop, 0.9)
			So(stats.ScaledDefined(high, pop, 0.1, 0.9), ShouldEqual, 1)
			So(stats.ScaledDefined(1000, pop, 0.1, 0.9), ShouldEqual, 1)
		})

		Convey("When the value moves through the band", func() {
			prev := -1.0
			for v := 0.0; v <= 110; v += 2.5 {
				got := stats.ScaledDefined(v, pop, 0.1, 0.9)
				So(got, ShouldBeGreaterThanOrEqualTo, prev)
				So(got, ShouldBeBetweenOrEqual, 0, 1)
				prev = got
			}
		})

		Convey("When scaling with the default band", func() {
			So(stats.Scaled(55, pop), ShouldAlmostEqual, 0.5, 1e-9)
		})
	})
}

func TestBuckets(t *testing.T) {
	Convey("Given candidates spread over providers", t, func() {
		providers := []string{"hetzner", "ovh", "hetzner", "", "  "}
		b := stats.CountBuckets(providers, func(p string) string { return p }, "No Location")

		Convey("Then blank values land in the unknown bucket", func() {
			So(b.Count("hetzner"), ShouldEqual, 2)
			So(b.Count("ovh"), ShouldEqual, 1)
			So(b.Count(""), ShouldEqual, 2)
			So(b.IsUnknown(" "), ShouldBeTrue)
			So(b.IsUnknown("ovh"), ShouldBeFalse)
		})

		Convey("Then the bucket population is the sorted counts", func() {
			So(b.Values(), ShouldResemble, []float64{1, 2, 2})
		})
	})

	Convey("Given Extract", t, func() {
		type c struct{ bonded float64 }
		got := stats.Extract([]c{{1}, {0}, {3}}, func(x c) float64 { return x.bonded })
		So(got, ShouldResemble, []float64{1, 0, 3})
	})
}
