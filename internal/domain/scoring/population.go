package scoring

import (
	"context"
	"errors"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/okian/otv/internal/domain/model"
	"github.com/okian/otv/internal/domain/stats"
	"github.com/okian/otv/pkg/logger"
	"github.com/okian/otv/pkg/metrics"
)

// Population is the scale one scoring round measures every candidate
// against. It is built once per round.
type Population struct {
	Inclusion      []float64
	SpanInclusion  []float64
	Discovered     []float64
	Nominated      []float64
	Rank           []float64
	Unclaimed      []float64
	Bonded         []float64
	Faults         []float64
	Offline        []float64
	NominatorStake []float64

	Location stats.Buckets
	Region   stats.Buckets
	Country  stats.Buckets
	Provider stats.Buckets

	locations     map[string]model.Location
	externalStake map[string]float64
}

// Metric extractors. Missing numeric values count as zero.
func inclusionOf(c model.Candidate) float64     { return c.Inclusion }
func spanInclusionOf(c model.Candidate) float64 { return c.SpanInclusion }
func rankOf(c model.Candidate) float64          { return float64(c.Rank) }
func unclaimedOf(c model.Candidate) float64     { return float64(len(c.UnclaimedEras)) }
func bondedOf(c model.Candidate) float64        { return c.Bonded }
func faultsOf(c model.Candidate) float64        { return float64(c.Faults) }
func offlineOf(c model.Candidate) float64       { return c.OfflineAccum.Seconds() }

func discoveredOf(c model.Candidate) float64 {
	if c.DiscoveredAt.IsZero() {
		return 0
	}
	return float64(c.DiscoveredAt.Unix())
}

func nominatedOf(c model.Candidate) float64 {
	if c.NominatedAt.IsZero() {
		return 0
	}
	return float64(c.NominatedAt.Unix())
}

// NewPopulation builds a population from already resolved data. locations
// and externalStake are keyed by stash; absent entries fall back to the
// candidate's own location and zero stake.
func NewPopulation(candidates []model.Candidate, locations map[string]model.Location, externalStake map[string]float64) *Population {
	if locations == nil {
		locations = map[string]model.Location{}
	}
	if externalStake == nil {
		externalStake = map[string]float64{}
	}
	p := &Population{locations: locations, externalStake: externalStake}

	p.Inclusion = stats.Sorted(stats.Extract(candidates, inclusionOf))
	p.SpanInclusion = stats.Sorted(stats.Extract(candidates, spanInclusionOf))
	p.Discovered = stats.Sorted(stats.Extract(candidates, discoveredOf))
	p.Nominated = stats.Sorted(stats.Extract(candidates, nominatedOf))
	p.Rank = stats.Sorted(stats.Extract(candidates, rankOf))
	p.Unclaimed = stats.Sorted(stats.Extract(candidates, unclaimedOf))
	p.Bonded = stats.Sorted(stats.Extract(candidates, bondedOf))
	p.Faults = stats.Sorted(stats.Extract(candidates, faultsOf))
	p.Offline = stats.Sorted(stats.Extract(candidates, offlineOf))
	p.NominatorStake = stats.Sorted(stats.Extract(candidates, p.stakeOf))

	p.Location = stats.CountBuckets(candidates, func(c model.Candidate) string { return p.LocationOf(c).City }, model.UnknownBucket)
	p.Region = stats.CountBuckets(candidates, func(c model.Candidate) string { return p.LocationOf(c).Region }, model.UnknownBucket)
	p.Country = stats.CountBuckets(candidates, func(c model.Candidate) string { return p.LocationOf(c).Country }, model.UnknownBucket)
	p.Provider = stats.CountBuckets(candidates, func(c model.Candidate) string { return p.LocationOf(c).Provider }, model.UnknownBucket)
	return p
}

// LocationOf returns the resolved location of c.
func (p *Population) LocationOf(c model.Candidate) model.Location {
	if loc, ok := p.locations[c.Stash]; ok {
		return loc
	}
	return c.Location
}

func (p *Population) stakeOf(c model.Candidate) float64 {
	return p.externalStake[c.Stash]
}

// Metadata summarises the population for the audit trail.
func (p *Population) Metadata(session uint32, w model.Weights) model.ScoreMetadata {
	return model.ScoreMetadata{
		Session:        session,
		Weights:        w,
		Bonded:         stats.GetStats(p.Bonded),
		Faults:         stats.GetStats(p.Faults),
		Inclusion:      stats.GetStats(p.Inclusion),
		SpanInclusion:  stats.GetStats(p.SpanInclusion),
		Discovered:     stats.GetStats(p.Discovered),
		Nominated:      stats.GetStats(p.Nominated),
		Offline:        stats.GetStats(p.Offline),
		Rank:           stats.GetStats(p.Rank),
		Unclaimed:      stats.GetStats(p.Unclaimed),
		Location:       stats.GetStats(p.Location.Values()),
		Region:         stats.GetStats(p.Region.Values()),
		Country:        stats.GetStats(p.Country.Values()),
		Provider:       stats.GetStats(p.Provider.Values()),
		NominatorStake: stats.GetStats(p.NominatorStake),
	}
}

// BuildPopulation resolves each candidate's location and external nominator
// stake from the store and builds the round's population. Lookup failures
// degrade to the candidate's own location and zero stake.
func (s *Scorer) BuildPopulation(ctx context.Context, candidates []model.Candidate) *Population {
	managed := mapset.NewSet[string]()
	nominators, err := s.store.AllNominators(ctx)
	if err != nil {
		metrics.RecordStoreError("all_nominators")
		s.log.Warn(ctx, "nominator lookup failed, counting all stake as external", logger.Error(err))
	}
	for _, n := range nominators {
		managed.Add(n.Address)
		if n.Stash != "" {
			managed.Add(n.Stash)
		}
	}

	locations := make(map[string]model.Location, len(candidates))
	stake := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		log := s.log.With(logger.String("stash", c.Stash), logger.String("name", c.Name))

		loc, err := s.store.GetCandidateLocation(ctx, c.Stash)
		switch {
		case err == nil:
			locations[c.Stash] = loc
		case !errors.Is(err, model.ErrNotFound):
			metrics.RecordStoreError("get_candidate_location")
			log.Warn(ctx, "location lookup failed", logger.Error(err))
		}

		ns, err := s.store.GetLatestNominatorStake(ctx, c.Stash)
		switch {
		case err == nil:
			stake[c.Stash] = ns.ExternalStake(func(addr string) bool { return managed.Contains(addr) })
		case !errors.Is(err, model.ErrNotFound):
			metrics.RecordStoreError("get_nominator_stake")
			log.Warn(ctx, "nominator stake lookup failed", logger.Error(err))
		}
	}
	return NewPopulation(candidates, locations, stake)
}
