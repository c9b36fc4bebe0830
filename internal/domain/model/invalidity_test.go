package model_test

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/okian/otv/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInvalidityList(t *testing.T) {
	Convey("Given an invalidity list", t, func() {
		var l model.InvalidityList
		now := time.Unix(1_700_000_000, 0).UTC()

		l.Set(model.InvalidityRecord{Kind: model.KindOnline, Valid: false, Detail: "offline", UpdatedAt: now})
		l.Set(model.InvalidityRecord{Kind: model.KindIdentity, Valid: true, UpdatedAt: now})

		Convey("When a kind is set again", func() {
			l.Set(model.InvalidityRecord{Kind: model.KindOnline, Valid: true, UpdatedAt: now.Add(time.Minute)})

			Convey("Then it replaces the prior record in place", func() {
				So(l.Len(), ShouldEqual, 2)
				recs := l.Records()
				So(recs[0].Kind, ShouldEqual, model.KindOnline)
				So(recs[0].Valid, ShouldBeTrue)
				So(recs[0].Detail, ShouldEqual, "")
				So(recs[1].Kind, ShouldEqual, model.KindIdentity)
			})

			Convey("Then no rule is failing", func() {
				So(l.Failing(), ShouldBeEmpty)
			})
		})

		Convey("When round-tripping through JSON with a duplicate kind", func() {
			raw := `[{"type":"ONLINE","valid":false},{"type":"BLOCKED","valid":true},{"type":"ONLINE","valid":true}]`
			var decoded model.InvalidityList
			err := json.Unmarshal([]byte(raw), &decoded)

			Convey("Then the last record per kind wins", func() {
				So(err, ShouldBeNil)
				So(decoded.Len(), ShouldEqual, 2)
				r, ok := decoded.Get(model.KindOnline)
				So(ok, ShouldBeTrue)
				So(r.Valid, ShouldBeTrue)
			})
		})

		Convey("When cloned", func() {
			c := l.Clone()
			c.Set(model.InvalidityRecord{Kind: model.KindBlocked})

			Convey("Then the original is untouched", func() {
				So(l.Len(), ShouldEqual, 2)
				So(c.Len(), ShouldEqual, 3)
			})
		})
	})
}

func TestInvalidityListNeverDuplicatesKinds(t *testing.T) {
	Convey("Given random update sequences", t, func() {
		kinds := []model.InvalidityKind{
			model.KindOnline, model.KindCommission, model.KindSelfStake,
			model.KindIdentity, model.KindProvider, model.KindBeefy,
		}
		rng := rand.New(rand.NewSource(7))

		for round := 0; round < 50; round++ {
			var l model.InvalidityList
			last := map[model.InvalidityKind]string{}
			for i := 0; i < 40; i++ {
				k := kinds[rng.Intn(len(kinds))]
				detail := fmt.Sprintf("%d-%d", round, i)
				l.Set(model.InvalidityRecord{Kind: k, Valid: rng.Intn(2) == 0, Detail: detail})
				last[k] = detail
			}

			seen := map[model.InvalidityKind]bool{}
			for _, r := range l.Records() {
				So(seen[r.Kind], ShouldBeFalse)
				seen[r.Kind] = true
				So(r.Detail, ShouldEqual, last[r.Kind])
			}
			So(len(seen), ShouldEqual, len(last))
		}
	})
}

func TestNominatorStake(t *testing.T) {
	Convey("Given a validator's nominator backing", t, func() {
		s := &model.NominatorStake{
			Active:   []model.NominatorBacking{{Address: "ours", Bonded: 500}, {Address: "a", Bonded: 100}},
			Inactive: []model.NominatorBacking{{Address: "b", Bonded: 50}},
		}

		Convey("Then managed nominators are excluded from the external stake", func() {
			managed := func(addr string) bool { return addr == "ours" }
			So(s.ExternalStake(managed), ShouldEqual, 150)
			So(s.ExternalStake(nil), ShouldEqual, 650)
		})

		Convey("Then a missing record contributes nothing", func() {
			var none *model.NominatorStake
			So(none.ExternalStake(nil), ShouldEqual, 0)
		})
	})
}
