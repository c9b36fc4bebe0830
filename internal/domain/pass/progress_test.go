package pass

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestProgressETA(t *testing.T) {
	Convey("Given ten items averaging one second each", t, func() {
		Convey("When one worker has finished two", func() {
			p := &progress{total: 10, workers: 1}
			p.add(time.Second)
			done, pct, eta := p.add(time.Second)

			Convey("Then the estimate covers the eight remaining in series", func() {
				So(done, ShouldEqual, 2)
				So(pct, ShouldEqual, 20)
				So(eta, ShouldEqual, 8*time.Second)
			})
		})

		Convey("When four workers have finished two", func() {
			p := &progress{total: 10, workers: 4}
			p.add(time.Second)
			_, _, eta := p.add(time.Second)

			Convey("Then the estimate is split across the workers", func() {
				So(eta, ShouldEqual, 2*time.Second)
			})
		})

		Convey("When fewer items remain than workers", func() {
			p := &progress{total: 10, workers: 4}
			for i := 0; i < 8; i++ {
				p.add(time.Second)
			}
			_, _, eta := p.add(time.Second)

			Convey("Then the last item is not divided further", func() {
				So(eta, ShouldEqual, time.Second)
			})
		})

		Convey("When every item is done", func() {
			p := &progress{total: 1, workers: 4}
			_, _, eta := p.add(time.Second)

			Convey("Then nothing remains", func() {
				So(eta, ShouldEqual, time.Duration(0))
			})
		})
	})
}
