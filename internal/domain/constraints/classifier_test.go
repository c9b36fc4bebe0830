package constraints_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"

	"github.com/okian/otv/internal/domain/constraints"
	"github.com/okian/otv/internal/domain/model"
)

func TestProcessCandidates(t *testing.T) {
	convey.Convey("Given a classifier", t, func() {
		ctx := context.Background()
		alice := healthyCandidate("S1", "alice")
		bob := healthyCandidate("S2", "bob")
		carol := healthyCandidate("S3", "carol")

		convey.Convey("When a candidate's live commission exceeds the ceiling", func() {
			chain := newChain(func(m *chainMock) {
				m.On("GetCommission", mock.Anything, "S2").Return(20.0, nil)
			})
			good, bad := constraints.NewClassifier(chain).ProcessCandidates(ctx, []model.Candidate{alice, bob, carol})

			convey.Convey("Then it is rejected with its name and commission and self stake is not queried", func() {
				convey.So(len(good), convey.ShouldEqual, 2)
				convey.So(good[0].Stash, convey.ShouldEqual, "S1")
				convey.So(good[1].Stash, convey.ShouldEqual, "S3")
				convey.So(len(bad), convey.ShouldEqual, 1)
				convey.So(bad[0].Candidate.Stash, convey.ShouldEqual, "S2")
				convey.So(bad[0].Reason, convey.ShouldContainSubstring, "bob")
				convey.So(bad[0].Reason, convey.ShouldContainSubstring, "20.00")
				chain.AssertNotCalled(t, "GetBondedAmount", mock.Anything, "S2")
				chain.AssertCalled(t, "GetBondedAmount", mock.Anything, "S1")
			})
		})

		convey.Convey("When the commission cannot be read", func() {
			chain := newChain(func(m *chainMock) {
				m.On("GetCommission", mock.Anything, "S1").Return(0.0, errors.New("validator not found"))
			})
			_, bad := constraints.NewClassifier(chain).ProcessCandidates(ctx, []model.Candidate{alice})

			convey.Convey("Then the candidate is treated as having withdrawn its intention", func() {
				convey.So(len(bad), convey.ShouldEqual, 1)
				convey.So(bad[0].Reason, convey.ShouldContainSubstring, "withdrew intention")
				chain.AssertNumberOfCalls(t, "GetBondedAmount", 0)
			})
		})

		convey.Convey("When self stake is below the floor", func() {
			chain := newChain(func(m *chainMock) {
				m.On("GetBondedAmount", mock.Anything, "S1").Return(1e13, nil)
			})

			convey.Convey("Then the candidate is rejected", func() {
				good, bad := constraints.NewClassifier(chain).ProcessCandidates(ctx, []model.Candidate{alice})
				convey.So(good, convey.ShouldBeEmpty)
				convey.So(bad[0].Reason, convey.ShouldContainSubstring, "minimum amount bonded")
			})

			convey.Convey("Then an exempt candidate is accepted without the query", func() {
				alice.SkipSelfStake = true
				good, bad := constraints.NewClassifier(chain).ProcessCandidates(ctx, []model.Candidate{alice})
				convey.So(len(good), convey.ShouldEqual, 1)
				convey.So(bad, convey.ShouldBeEmpty)
				chain.AssertNotCalled(t, "GetBondedAmount", mock.Anything, "S1")
			})
		})

		convey.Convey("When a candidate was offline too long this week", func() {
			carol.OfflineAccum = 5 * time.Hour
			good, bad := constraints.NewClassifier(newChain(nil)).ProcessCandidates(ctx, []model.Candidate{alice, carol})

			convey.Convey("Then only that candidate is rejected", func() {
				convey.So(len(good), convey.ShouldEqual, 1)
				convey.So(bad[0].Candidate.Name, convey.ShouldEqual, "carol")
				convey.So(bad[0].Reason, convey.ShouldContainSubstring, "offline")
			})
		})

		convey.Convey("When the reward destination check is enabled", func() {
			chain := newChain(func(m *chainMock) {
				m.On("DestinationIsStaked", mock.Anything, "S1").Return(false, nil)
			})
			s := constraints.DefaultSettings()
			s.SkipStakedDestination = false
			_, bad := constraints.NewClassifier(chain, constraints.WithSettings(s)).ProcessCandidates(ctx, []model.Candidate{alice})

			convey.Convey("Then an unstaked destination disqualifies", func() {
				convey.So(len(bad), convey.ShouldEqual, 1)
				convey.So(bad[0].Reason, convey.ShouldContainSubstring, "Staked")
			})
		})

		convey.Convey("When the reward destination check is skipped by default", func() {
			chain := newChain(nil)
			constraints.NewClassifier(chain).ProcessCandidates(ctx, []model.Candidate{alice})
			chain.AssertNotCalled(t, "DestinationIsStaked", mock.Anything, mock.Anything)
		})

		convey.Convey("When run with bounded parallelism", func() {
			chain := newChain(func(m *chainMock) {
				m.On("GetCommission", mock.Anything, "S2").Return(50.0, nil)
			})
			good, bad := constraints.NewClassifier(chain, constraints.WithParallelism(3)).
				ProcessCandidates(ctx, []model.Candidate{alice, bob, carol})

			convey.Convey("Then the good set keeps input order", func() {
				convey.So([]string{good[0].Stash, good[1].Stash}, convey.ShouldResemble, []string{"S1", "S3"})
				convey.So(bad[0].Candidate.Stash, convey.ShouldEqual, "S2")
			})
		})
	})
}
