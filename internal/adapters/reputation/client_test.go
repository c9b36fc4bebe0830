package reputation_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/otv/internal/adapters/reputation"
	"github.com/okian/otv/internal/domain/model"
)

func TestRank(t *testing.T) {
	convey.Convey("Given a reputation service", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /candidate/K1", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"name":"alice","rank":42}`))
		})
		mux.HandleFunc("GET /candidate/K2", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()
		c := reputation.New(srv.URL+"/", 0)
		ctx := context.Background()

		convey.Convey("When the candidate is known", func() {
			rank, err := c.Rank(ctx, "K1")
			convey.So(err, convey.ShouldBeNil)
			convey.So(rank, convey.ShouldEqual, 42)
		})

		convey.Convey("When the candidate is unknown", func() {
			_, err := c.Rank(ctx, "K9")
			convey.So(errors.Is(err, model.ErrNotFound), convey.ShouldBeTrue)
		})

		convey.Convey("When the service errors", func() {
			_, err := c.Rank(ctx, "K2")
			convey.So(errors.Is(err, reputation.ErrUnexpectedStatus), convey.ShouldBeTrue)
		})
	})
}
