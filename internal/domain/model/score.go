package model

import (
	"time"

	"github.com/okian/otv/internal/domain/stats"
)

// ScoreRecord is a candidate's score for one session. It is keyed by
// (Address, Session) and overwritten in place on every scoring round.
type ScoreRecord struct {
	Address    string    `json:"address"`
	Session    uint32    `json:"session"`
	Total      float64   `json:"total"`
	Aggregate  float64   `json:"aggregate"`
	Randomness float64   `json:"randomness"`
	UpdatedAt  time.Time `json:"updated"`

	Inclusion      float64 `json:"inclusion"`
	SpanInclusion  float64 `json:"spanInclusion"`
	Discovered     float64 `json:"discovered"`
	Nominated      float64 `json:"nominated"`
	Rank           float64 `json:"rank"`
	Unclaimed      float64 `json:"unclaimed"`
	Bonded         float64 `json:"bonded"`
	Faults         float64 `json:"faults"`
	Offline        float64 `json:"offline"`
	Location       float64 `json:"location"`
	Region         float64 `json:"region"`
	Country        float64 `json:"country"`
	Provider       float64 `json:"provider"`
	NominatorStake float64 `json:"nominatorStake"`
	Client         float64 `json:"client"`
}

// Weights holds one weight per scored component.
type Weights struct {
	Inclusion      float64 `json:"inclusion"`
	SpanInclusion  float64 `json:"spanInclusion"`
	Discovered     float64 `json:"discovered"`
	Nominated      float64 `json:"nominated"`
	Rank           float64 `json:"rank"`
	Unclaimed      float64 `json:"unclaimed"`
	Bonded         float64 `json:"bonded"`
	Faults         float64 `json:"faults"`
	Offline        float64 `json:"offline"`
	Location       float64 `json:"location"`
	Region         float64 `json:"region"`
	Country        float64 `json:"country"`
	Provider       float64 `json:"provider"`
	NominatorStake float64 `json:"nominatorStake"`
	Client         float64 `json:"client"`
}

// ScoreMetadata is the population snapshot one scoring round was computed
// against, keyed by Session.
type ScoreMetadata struct {
	Session   uint32    `json:"session"`
	UpdatedAt time.Time `json:"updated"`
	Weights   Weights   `json:"weights"`

	Bonded         stats.Summary `json:"bondedStats"`
	Faults         stats.Summary `json:"faultsStats"`
	Inclusion      stats.Summary `json:"inclusionStats"`
	SpanInclusion  stats.Summary `json:"spanInclusionStats"`
	Discovered     stats.Summary `json:"discoveredAtStats"`
	Nominated      stats.Summary `json:"nominatedAtStats"`
	Offline        stats.Summary `json:"offlineStats"`
	Rank           stats.Summary `json:"rankStats"`
	Unclaimed      stats.Summary `json:"unclaimedStats"`
	Location       stats.Summary `json:"locationStats"`
	Region         stats.Summary `json:"regionStats"`
	Country        stats.Summary `json:"countryStats"`
	Provider       stats.Summary `json:"providerStats"`
	NominatorStake stats.Summary `json:"nominatorStakeStats"`
}
