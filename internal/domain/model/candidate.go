// Package model contains domain models passed between layers.
package model

import "time"

// Client implementations recognised by the client-version check and the
// alternate-client score component.
const (
	DefaultImplementation = "Parity Polkadot"
	KagomeImplementation  = "Kagome Node"
)

// UnknownBucket groups candidates whose geographic attribute is unresolved.
const UnknownBucket = "No Location"

// Location is the resolved geographic placement of a candidate's node.
type Location struct {
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Provider string `json:"provider"`
}

// Identity summarises the on-chain identity of a candidate.
type Identity struct {
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

// Candidate is one roster entry evaluated by the programme.
type Candidate struct {
	Stash          string         `json:"stash"`
	Name           string         `json:"name"`
	Bonded         float64        `json:"bonded"`
	Faults         int            `json:"faults"`
	Inclusion      float64        `json:"inclusion"`
	SpanInclusion  float64        `json:"spanInclusion"`
	Rank           int            `json:"rank"`
	UnclaimedEras  []uint32       `json:"unclaimedEras"`
	Commission     float64        `json:"commission"`
	SkipSelfStake  bool           `json:"skipSelfStake"`
	SecondaryStash string         `json:"secondaryStash,omitempty"`
	Version        string         `json:"version"`
	Implementation string         `json:"implementation"`
	Location       Location       `json:"location"`
	Identity       *Identity      `json:"identity,omitempty"`
	DiscoveredAt   time.Time      `json:"discoveredAt"`
	NominatedAt    time.Time      `json:"nominatedAt"`
	OnlineSince    time.Time      `json:"onlineSince"`
	OfflineSince   time.Time      `json:"offlineSince"`
	OfflineAccum   time.Duration  `json:"offlineAccumulated"`
	Valid          bool           `json:"valid"`
	LastValid      time.Time      `json:"lastValid"`
	Invalidity     InvalidityList `json:"invalidity"`
}

// IsAlternateClient reports whether the candidate runs a non-default client.
func (c *Candidate) IsAlternateClient() bool {
	return c.Implementation != "" && c.Implementation != DefaultImplementation
}

// Nominator is one of the programme's own managed nominator accounts.
type Nominator struct {
	Address    string   `json:"address"`
	Stash      string   `json:"stash"`
	Bonded     float64  `json:"bonded"`
	Nominating []string `json:"nominating"`
}

// NominatorBacking is a single nominator's bond behind a validator.
type NominatorBacking struct {
	Address string  `json:"address"`
	Bonded  float64 `json:"bonded"`
}

// NominatorStake is the latest known nominator backing for a validator.
type NominatorStake struct {
	Stash    string             `json:"stash"`
	Era      uint32             `json:"era"`
	Active   []NominatorBacking `json:"activeNominators"`
	Inactive []NominatorBacking `json:"inactiveNominators"`
}

// ExternalStake sums the backing of every nominator not listed in managed.
func (s *NominatorStake) ExternalStake(managed func(address string) bool) float64 {
	if s == nil {
		return 0
	}
	var sum float64
	for _, group := range [][]NominatorBacking{s.Active, s.Inactive} {
		for _, n := range group {
			if managed != nil && managed(n.Address) {
				continue
			}
			sum += n.Bonded
		}
	}
	return sum
}

// Release is a published client release.
type Release struct {
	Name        string    `json:"name"`
	PublishedAt time.Time `json:"publishedAt"`
}

// SessionKeys holds the queued session keys of a validator.
type SessionKeys struct {
	Grandpa string `json:"grandpa"`
	Babe    string `json:"babe"`
	Beefy   string `json:"beefy"`
}
