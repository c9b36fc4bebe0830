package constraints

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/okian/otv/pkg/logger"
)

// Default thresholds.
const (
	defaultMinSelfStake           = 10_000
	defaultCommission             = 15
	defaultUnclaimedEraThreshold  = 4
	defaultMinConnectionTime      = 7 * 24 * time.Hour
	defaultClientUpgradeGrace     = 18 * time.Hour
	defaultSecondaryRankThreshold = 25

	// offlineWindow is the rolling window accumulated offline time is
	// measured over; a candidate may be offline for offlineRatio of it.
	offlineWindow = 7 * 24 * time.Hour
	offlineRatio  = 0.02

	// beefyPlaceholder is the hex encoding of "beef", the key a node queues
	// until its operator rotates keys.
	beefyPlaceholder = "0x62656566"
)

// Settings are the eligibility thresholds and skip flags.
type Settings struct {
	SkipConnectionTime     bool
	SkipIdentity           bool
	SkipClientUpgrade      bool
	SkipUnclaimed          bool
	SkipStakedDestination  bool
	MinSelfStake           float64
	Commission             float64
	UnclaimedEraThreshold  int
	MinConnectionTime      time.Duration
	ClientUpgradeGrace     time.Duration
	ForcedClientVersion    string
	ProviderBlacklist      []string
	SecondaryRankThreshold int
}

// DefaultSettings returns the programme's standard thresholds.
func DefaultSettings() Settings {
	return Settings{
		SkipStakedDestination:  true,
		MinSelfStake:           defaultMinSelfStake,
		Commission:             defaultCommission,
		UnclaimedEraThreshold:  defaultUnclaimedEraThreshold,
		MinConnectionTime:      defaultMinConnectionTime,
		ClientUpgradeGrace:     defaultClientUpgradeGrace,
		SecondaryRankThreshold: defaultSecondaryRankThreshold,
	}
}

// options is shared by the Checker and the Classifier.
type options struct {
	settings    Settings
	blacklist   mapset.Set[string]
	reputation  Reputation
	log         logger.Logger
	now         func() time.Time
	parallelism int
}

// Option configures a Checker or Classifier.
type Option func(*options)

// WithSettings replaces the thresholds and skip flags.
func WithSettings(s Settings) Option {
	return func(o *options) {
		o.settings = s
	}
}

// WithReputation enables the secondary-network rank check.
func WithReputation(r Reputation) Option {
	return func(o *options) {
		o.reputation = r
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithParallelism bounds how many candidates a pass evaluates at once.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		settings:    DefaultSettings(),
		log:         logger.NewNop(),
		now:         time.Now,
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.blacklist = mapset.NewSet(o.settings.ProviderBlacklist...)
	return o
}

// offlineCeiling is the accumulated offline time a candidate may not exceed.
func offlineCeiling() time.Duration {
	return time.Duration(float64(offlineWindow) * offlineRatio)
}
