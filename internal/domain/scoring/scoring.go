// Package scoring ranks eligible candidates by a weighted multi-factor score.
//
// Every metric is normalised against the whole valid population of the
// round, so a score only means something relative to the other scores of
// the same session. The final total carries a bounded random multiplier so
// near-tied candidates do not always come out in the same order.
package scoring

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/okian/otv/internal/domain/model"
	"github.com/okian/otv/internal/domain/pass"
	"github.com/okian/otv/internal/domain/stats"
	"github.com/okian/otv/pkg/logger"
	"github.com/okian/otv/pkg/metrics"
)

// Quantile cutoffs and fixed factors.
const (
	inclusionLowQ  = 0.05
	inclusionHighQ = 0.95
	bondedLowQ     = 0.05
	bondedHighQ    = 0.85
	stakeLowQ      = 0.05
	stakeHighQ     = 0.95
	densityLowQ    = 0.10
	densityHighQ   = 0.95

	unknownGeoFactor = 0.25
	maxJitter        = 0.15
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeights sets the component weights.
func WithWeights(w model.Weights) Option {
	return func(s *Scorer) {
		s.weights = w
	}
}

// WithBlacklist sets the providers whose candidates get no geographic score.
func WithBlacklist(providers []string) Option {
	return func(s *Scorer) {
		s.blacklist = mapset.NewSet(providers...)
	}
}

// WithRand sets the jitter source. Tests pass a seeded source for
// reproducible totals.
func WithRand(rng *rand.Rand) Option {
	return func(s *Scorer) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scorer) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithParallelism bounds how many candidates are scored at once.
func WithParallelism(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// Scorer computes and persists score records.
type Scorer struct {
	chain Chain
	store Store

	weights   model.Weights
	blacklist mapset.Set[string]

	rngMu sync.Mutex
	rng   *rand.Rand

	log         logger.Logger
	now         func() time.Time
	parallelism int
}

// New creates a Scorer with default weights and a time-seeded jitter source.
func New(chain Chain, store Store, opts ...Option) *Scorer {
	s := &Scorer{
		chain:       chain,
		store:       store,
		weights:     DefaultWeights(),
		blacklist:   mapset.NewSet[string](),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // jitter is not security sensitive
		log:         logger.NewNop(),
		now:         time.Now,
		parallelism: 1,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("scorer")

	return s
}

// Weights returns the weights in use.
func (s *Scorer) Weights() model.Weights { return s.weights }

// ScoreCandidates scores every valid candidate for the current session and
// returns the records ordered by descending total. The population metadata
// is computed and stored once, before any candidate is scored.
func (s *Scorer) ScoreCandidates(ctx context.Context) ([]model.ScoreRecord, error) {
	candidates, err := s.store.ValidCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load valid candidates: %w", err)
	}
	session, err := s.chain.GetSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSession, err)
	}

	pop := s.BuildPopulation(ctx, candidates)
	meta := pop.Metadata(session, s.weights)
	meta.UpdatedAt = s.now()
	if err := s.store.SetValidatorScoreMetadata(ctx, meta); err != nil {
		metrics.RecordStoreError("set_score_metadata")
		s.log.Error(ctx, "store score metadata failed", logger.Uint32("session", session), logger.Error(err))
	}

	records := make([]model.ScoreRecord, len(candidates))
	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	runner := pass.New("scoring", pass.WithLogger(s.log), pass.WithParallelism(s.parallelism), pass.WithClock(s.now))
	label := func(i int) string { return candidates[i].Name }
	err = pass.Each(ctx, runner, idx, label, func(ctx context.Context, i int) {
		records[i] = s.ScoreCandidate(ctx, candidates[i], pop, session)
	})

	out := records[:0]
	for _, r := range records {
		if r.Address != "" {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b model.ScoreRecord) int {
		switch {
		case a.Total > b.Total:
			return -1
		case a.Total < b.Total:
			return 1
		}
		return 0
	})
	return out, err
}

// ScoreCandidate scores c against pop, applies the jitter and upserts the
// record for (c.Stash, session). A failed write is logged and the record is
// still returned.
func (s *Scorer) ScoreCandidate(ctx context.Context, c model.Candidate, pop *Population, session uint32) model.ScoreRecord {
	r := s.Components(c, pop)
	r.Session = session
	r.Randomness = s.jitter()
	r.Total = r.Aggregate * r.Randomness
	r.UpdatedAt = s.now()

	if err := s.store.SetValidatorScore(ctx, r); err != nil {
		metrics.RecordStoreError("set_score")
		s.log.Error(ctx, "store score failed",
			logger.String("stash", c.Stash),
			logger.String("name", c.Name),
			logger.Uint32("session", session),
			logger.Error(err))
	}
	metrics.RecordScore(r.Total)
	return r
}

// Components computes every weighted component and their sum, without
// jitter.
func (s *Scorer) Components(c model.Candidate, pop *Population) model.ScoreRecord {
	w := s.weights
	r := model.ScoreRecord{Address: c.Stash}

	r.Inclusion = inverted(stats.ScaledDefined(c.Inclusion, pop.Inclusion, inclusionLowQ, inclusionHighQ)) * w.Inclusion
	r.SpanInclusion = inverted(stats.ScaledDefined(c.SpanInclusion, pop.SpanInclusion, inclusionLowQ, inclusionHighQ)) * w.SpanInclusion
	r.Discovered = inverted(stats.Scaled(discoveredOf(c), pop.Discovered)) * w.Discovered
	r.Nominated = inverted(stats.Scaled(nominatedOf(c), pop.Nominated)) * w.Nominated
	r.Rank = stats.Scaled(rankOf(c), pop.Rank) * w.Rank
	r.Unclaimed = -w.Unclaimed * unclaimedOf(c)
	r.Bonded = stats.ScaledDefined(c.Bonded, pop.Bonded, bondedLowQ, bondedHighQ) * w.Bonded
	r.Faults = inverted(stats.Scaled(faultsOf(c), pop.Faults)) * w.Faults
	r.Offline = inverted(stats.Scaled(offlineOf(c), pop.Offline)) * w.Offline
	r.NominatorStake = stats.ScaledDefined(pop.stakeOf(c), pop.NominatorStake, stakeLowQ, stakeHighQ) * w.NominatorStake
	if c.IsAlternateClient() {
		r.Client = w.Client
	}

	loc := pop.LocationOf(c)
	if loc.Provider == "" || !s.blacklist.Contains(loc.Provider) {
		r.Location = density(loc.City, pop.Location, w.Location)
		r.Region = density(loc.Region, pop.Region, w.Region)
		r.Country = density(loc.Country, pop.Country, w.Country)
		r.Provider = density(loc.Provider, pop.Provider, w.Provider)
	}

	r.Aggregate = r.Inclusion + r.SpanInclusion + r.Discovered + r.Nominated + r.Rank +
		r.Unclaimed + r.Bonded + r.Faults + r.Offline + r.Location + r.Region +
		r.Country + r.Provider + r.NominatorStake + r.Client
	return r
}

// density favours sparsely populated buckets. Unresolved values get a fixed
// share of the weight.
func density(value string, b stats.Buckets, weight float64) float64 {
	if b.IsUnknown(value) {
		return unknownGeoFactor * weight
	}
	return inverted(stats.ScaledDefined(float64(b.Count(value)), b.Values(), densityLowQ, densityHighQ)) * weight
}

func inverted(v float64) float64 { return 1 - v }

// jitter returns a multiplier in [1, 1+maxJitter).
func (s *Scorer) jitter() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return 1 + s.rng.Float64()*maxJitter
}
