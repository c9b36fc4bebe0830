package scoring

import (
	"fmt"
	"sort"

	"github.com/okian/otv/internal/domain/model"
)

// Default component weights.
const (
	defaultInclusionWeight      = 220
	defaultSpanInclusionWeight  = 220
	defaultDiscoveredWeight     = 5
	defaultNominatedWeight      = 30
	defaultRankWeight           = 5
	defaultUnclaimedWeight      = 10
	defaultBondedWeight         = 50
	defaultFaultsWeight         = 5
	defaultOfflineWeight        = 2
	defaultLocationWeight       = 40
	defaultRegionWeight         = 10
	defaultCountryWeight        = 10
	defaultProviderWeight       = 100
	defaultNominatorStakeWeight = 100
	defaultClientWeight         = 100
)

// DefaultWeights returns the built-in weight for every component.
func DefaultWeights() model.Weights {
	return model.Weights{
		Inclusion:      defaultInclusionWeight,
		SpanInclusion:  defaultSpanInclusionWeight,
		Discovered:     defaultDiscoveredWeight,
		Nominated:      defaultNominatedWeight,
		Rank:           defaultRankWeight,
		Unclaimed:      defaultUnclaimedWeight,
		Bonded:         defaultBondedWeight,
		Faults:         defaultFaultsWeight,
		Offline:        defaultOfflineWeight,
		Location:       defaultLocationWeight,
		Region:         defaultRegionWeight,
		Country:        defaultCountryWeight,
		Provider:       defaultProviderWeight,
		NominatorStake: defaultNominatorStakeWeight,
		Client:         defaultClientWeight,
	}
}

// weightFields maps configuration names onto Weights fields.
var weightFields = map[string]func(*model.Weights) *float64{
	"inclusion":       func(w *model.Weights) *float64 { return &w.Inclusion },
	"span_inclusion":  func(w *model.Weights) *float64 { return &w.SpanInclusion },
	"discovered":      func(w *model.Weights) *float64 { return &w.Discovered },
	"nominated":       func(w *model.Weights) *float64 { return &w.Nominated },
	"rank":            func(w *model.Weights) *float64 { return &w.Rank },
	"unclaimed":       func(w *model.Weights) *float64 { return &w.Unclaimed },
	"bonded":          func(w *model.Weights) *float64 { return &w.Bonded },
	"faults":          func(w *model.Weights) *float64 { return &w.Faults },
	"offline":         func(w *model.Weights) *float64 { return &w.Offline },
	"location":        func(w *model.Weights) *float64 { return &w.Location },
	"region":          func(w *model.Weights) *float64 { return &w.Region },
	"country":         func(w *model.Weights) *float64 { return &w.Country },
	"provider":        func(w *model.Weights) *float64 { return &w.Provider },
	"nominator_stake": func(w *model.Weights) *float64 { return &w.NominatorStake },
	"client":          func(w *model.Weights) *float64 { return &w.Client },
}

// WeightsFromConfig overlays configured weights on the defaults. Components
// not named keep their default; an unrecognised name is an error.
func WeightsFromConfig(cfg map[string]float64) (model.Weights, error) {
	w := DefaultWeights()
	var unknown []string
	for name, v := range cfg {
		field, ok := weightFields[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		*field(&w) = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return w, fmt.Errorf("%w: %v", ErrUnknownWeight, unknown)
	}
	return w, nil
}
