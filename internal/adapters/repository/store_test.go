package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/otv/internal/adapters/repository"
	"github.com/okian/otv/internal/domain/model"
)

var at = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newRedisStore(t *testing.T) repository.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s, err := repository.NewRedisStore(context.Background(), rdb, repository.WithKeyPrefix("test"))
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	return s
}

func TestStores(t *testing.T) {
	backends := map[string]func(t *testing.T) repository.Store{
		"memory": func(*testing.T) repository.Store { return repository.NewMemoryStore() },
		"redis":  newRedisStore,
	}
	for name, build := range backends {
		t.Run(name, func(t *testing.T) { storeContract(t, build) })
	}
}

func storeContract(t *testing.T, build func(t *testing.T) repository.Store) {
	convey.Convey("Given an empty store", t, func() {
		ctx := context.Background()
		s := build(t)
		defer func() { _ = s.Close() }()

		alice := model.Candidate{
			Stash:         "S1",
			Name:          "alice",
			Bonded:        1500,
			UnclaimedEras: []uint32{90, 91},
			Location:      model.Location{City: "Paris", Provider: "OVH SAS"},
			DiscoveredAt:  at.Add(-48 * time.Hour),
			OnlineSince:   at.Add(-time.Hour),
		}
		bob := model.Candidate{Stash: "S2", Name: "bob"}

		convey.Convey("When candidates are upserted", func() {
			convey.So(s.UpsertCandidate(ctx, alice), convey.ShouldBeNil)
			convey.So(s.UpsertCandidate(ctx, bob), convey.ShouldBeNil)

			convey.Convey("Then they can be read back in stash order", func() {
				all, err := s.AllCandidates(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(all), convey.ShouldEqual, 2)
				convey.So(all[0].Stash, convey.ShouldEqual, "S1")
				convey.So(all[0].UnclaimedEras, convey.ShouldResemble, []uint32{90, 91})
				convey.So(all[0].DiscoveredAt.Equal(alice.DiscoveredAt), convey.ShouldBeTrue)

				got, err := s.Candidate(ctx, "S2")
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.Name, convey.ShouldEqual, "bob")
			})

			convey.Convey("Then verdicts are recorded one per kind", func() {
				convey.So(s.SetInvalidity(ctx, "S1", model.InvalidityRecord{Kind: model.KindOnline, Valid: false, Detail: "offline", UpdatedAt: at}), convey.ShouldBeNil)
				convey.So(s.SetInvalidity(ctx, "S1", model.InvalidityRecord{Kind: model.KindCommission, Valid: true, UpdatedAt: at}), convey.ShouldBeNil)
				convey.So(s.SetInvalidity(ctx, "S1", model.InvalidityRecord{Kind: model.KindOnline, Valid: true, UpdatedAt: at}), convey.ShouldBeNil)
				convey.So(s.SetValid(ctx, "S1", true), convey.ShouldBeNil)
				convey.So(s.SetLastValid(ctx, "S1", at), convey.ShouldBeNil)

				got, err := s.Candidate(ctx, "S1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.Invalidity.Len(), convey.ShouldEqual, 2)
				r, ok := got.Invalidity.Get(model.KindOnline)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(r.Valid, convey.ShouldBeTrue)
				convey.So(got.Valid, convey.ShouldBeTrue)
				convey.So(got.LastValid.Equal(at), convey.ShouldBeTrue)

				valid, err := s.ValidCandidates(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(valid), convey.ShouldEqual, 1)
				convey.So(valid[0].Stash, convey.ShouldEqual, "S1")

				convey.Convey("And a later upsert keeps them", func() {
					alice.Name = "alice-2"
					convey.So(s.UpsertCandidate(ctx, alice), convey.ShouldBeNil)
					got, err := s.Candidate(ctx, "S1")
					convey.So(err, convey.ShouldBeNil)
					convey.So(got.Name, convey.ShouldEqual, "alice-2")
					convey.So(got.Valid, convey.ShouldBeTrue)
					convey.So(got.Invalidity.Len(), convey.ShouldEqual, 2)
				})
			})
		})

		convey.Convey("When writing verdicts for an unknown stash", func() {
			err := s.SetValid(ctx, "nobody", true)
			convey.So(errors.Is(err, model.ErrNotFound), convey.ShouldBeTrue)
			err = s.SetInvalidity(ctx, "nobody", model.InvalidityRecord{Kind: model.KindOnline})
			convey.So(errors.Is(err, model.ErrNotFound), convey.ShouldBeTrue)
		})

		convey.Convey("When reading things that were never written", func() {
			_, err := s.GetLatestRelease(ctx)
			convey.So(errors.Is(err, model.ErrNotFound), convey.ShouldBeTrue)
			_, err = s.GetCandidateLocation(ctx, "S1")
			convey.So(errors.Is(err, model.ErrNotFound), convey.ShouldBeTrue)
			_, err = s.GetLatestNominatorStake(ctx, "S1")
			convey.So(errors.Is(err, model.ErrNotFound), convey.ShouldBeTrue)
			_, err = s.LatestValidatorScoreMetadata(ctx)
			convey.So(errors.Is(err, model.ErrNotFound), convey.ShouldBeTrue)
		})

		convey.Convey("When storing locations, releases and nominators", func() {
			convey.So(s.SetCandidateLocation(ctx, "S1", model.Location{Provider: "Hetzner Online GmbH"}), convey.ShouldBeNil)
			convey.So(s.SetLatestRelease(ctx, model.Release{Name: "v1.3.0", PublishedAt: at}), convey.ShouldBeNil)
			convey.So(s.UpsertNominator(ctx, model.Nominator{Address: "N2"}), convey.ShouldBeNil)
			convey.So(s.UpsertNominator(ctx, model.Nominator{Address: "N1", Nominating: []string{"S1"}}), convey.ShouldBeNil)

			loc, err := s.GetCandidateLocation(ctx, "S1")
			convey.So(err, convey.ShouldBeNil)
			convey.So(loc.Provider, convey.ShouldEqual, "Hetzner Online GmbH")

			rel, err := s.GetLatestRelease(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(rel.Name, convey.ShouldEqual, "v1.3.0")

			noms, err := s.AllNominators(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(noms), convey.ShouldEqual, 2)
			convey.So(noms[0].Address, convey.ShouldEqual, "N1")
		})

		convey.Convey("When nominator stakes arrive out of order", func() {
			convey.So(s.SetNominatorStake(ctx, model.NominatorStake{Stash: "S1", Era: 10, Active: []model.NominatorBacking{{Address: "E", Bonded: 5}}}), convey.ShouldBeNil)
			convey.So(s.SetNominatorStake(ctx, model.NominatorStake{Stash: "S1", Era: 9}), convey.ShouldBeNil)

			ns, err := s.GetLatestNominatorStake(ctx, "S1")
			convey.So(err, convey.ShouldBeNil)
			convey.So(ns.Era, convey.ShouldEqual, 10)
			convey.So(ns.ExternalStake(nil), convey.ShouldEqual, 5)
		})

		convey.Convey("When scores are written twice for the same session", func() {
			convey.So(s.SetValidatorScore(ctx, model.ScoreRecord{Address: "S1", Session: 7, Total: 100}), convey.ShouldBeNil)
			convey.So(s.SetValidatorScore(ctx, model.ScoreRecord{Address: "S1", Session: 7, Total: 120}), convey.ShouldBeNil)
			convey.So(s.SetValidatorScore(ctx, model.ScoreRecord{Address: "S1", Session: 8, Total: 90}), convey.ShouldBeNil)

			convey.Convey("Then the last write wins per session", func() {
				r, err := s.GetValidatorScore(ctx, "S1", 7)
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.Total, convey.ShouldEqual, 120)
				r, err = s.GetValidatorScore(ctx, "S1", 8)
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.Total, convey.ShouldEqual, 90)
				_, err = s.GetValidatorScore(ctx, "S1", 6)
				convey.So(errors.Is(err, model.ErrNotFound), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When score metadata is written for several sessions", func() {
			convey.So(s.SetValidatorScoreMetadata(ctx, model.ScoreMetadata{Session: 5, UpdatedAt: at}), convey.ShouldBeNil)
			convey.So(s.SetValidatorScoreMetadata(ctx, model.ScoreMetadata{Session: 6, UpdatedAt: at}), convey.ShouldBeNil)
			convey.So(s.SetValidatorScoreMetadata(ctx, model.ScoreMetadata{Session: 4, UpdatedAt: at}), convey.ShouldBeNil)

			convey.Convey("Then the latest is the highest session", func() {
				m, err := s.LatestValidatorScoreMetadata(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(m.Session, convey.ShouldEqual, 6)
				m, err = s.GetValidatorScoreMetadata(ctx, 4)
				convey.So(err, convey.ShouldBeNil)
				convey.So(m.Session, convey.ShouldEqual, 4)
			})
		})
	})
}

func TestMemoryStoreIsolation(t *testing.T) {
	convey.Convey("Given a candidate read from the memory store", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore()
		convey.So(s.UpsertCandidate(ctx, model.Candidate{Stash: "S1"}), convey.ShouldBeNil)
		convey.So(s.SetInvalidity(ctx, "S1", model.InvalidityRecord{Kind: model.KindOnline}), convey.ShouldBeNil)

		c, err := s.Candidate(ctx, "S1")
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When the caller mutates its copy", func() {
			c.Invalidity.Set(model.InvalidityRecord{Kind: model.KindBlocked})

			convey.Convey("Then the stored candidate is unchanged", func() {
				again, err := s.Candidate(ctx, "S1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(again.Invalidity.Len(), convey.ShouldEqual, 1)
			})
		})
	})
}

func TestRedisStoreUnreachable(t *testing.T) {
	convey.Convey("Given a redis address nothing listens on", t, func() {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := repository.Dial(context.Background(), addr, "", 0)
		convey.So(err, convey.ShouldNotBeNil)
	})
}
