// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat so every option can be overridden from the environment.
// - Provide New() to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import "time"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Chain endpoint access.
	ChainEndpoints       []string      `koanf:"chain_endpoints"`
	ChainRPS             int           `koanf:"chain_rps"`
	ChainBurst           int           `koanf:"chain_burst"`
	ChainTimeout         time.Duration `koanf:"chain_timeout"`
	ChainBreakerFailures int           `koanf:"chain_breaker_failures"`
	ChainBreakerCooldown time.Duration `koanf:"chain_breaker_cooldown"`
	ChainCacheTTL        time.Duration `koanf:"chain_cache_ttl"`

	// StoreBackend selects the store: "memory" or "redis".
	StoreBackend  string `koanf:"store_backend"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// ReputationURL is the secondary network's candidate service; empty
	// disables the secondary rank lookup.
	ReputationURL     string        `koanf:"reputation_url"`
	ReputationTimeout time.Duration `koanf:"reputation_timeout"`

	// Per-check skip flags.
	SkipConnectionTime    bool `koanf:"skip_connection_time"`
	SkipIdentity          bool `koanf:"skip_identity"`
	SkipStakedDestination bool `koanf:"skip_staked_destination"`
	SkipClientUpgrade     bool `koanf:"skip_client_upgrade"`
	SkipUnclaimed         bool `koanf:"skip_unclaimed"`

	// Eligibility thresholds.
	MinSelfStake           float64       `koanf:"min_self_stake"`
	Commission             float64       `koanf:"commission"`
	UnclaimedEraThreshold  int           `koanf:"unclaimed_era_threshold"`
	MinConnectionTime      time.Duration `koanf:"min_connection_time"`
	ClientUpgradeGrace     time.Duration `koanf:"client_upgrade_grace"`
	ForcedClientVersion    string        `koanf:"forced_client_version"`
	ProviderBlacklist      []string      `koanf:"provider_blacklist"`
	SecondaryRankThreshold int           `koanf:"secondary_rank_threshold"`

	// Weights maps score component names to weights. Components left out
	// use the built-in defaults.
	Weights map[string]float64 `koanf:"weights"`

	// Parallelism bounds how many candidates a pass handles at once.
	// 1 keeps passes strictly sequential.
	Parallelism int `koanf:"parallelism"`

	// Cron specs for the periodic passes; empty disables a pass.
	ValiditySchedule string `koanf:"validity_schedule"`
	ScoringSchedule  string `koanf:"scoring_schedule"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9080",
		ChainEndpoints:         []string{"http://localhost:8080"},
		ChainRPS:               20,
		ChainBurst:             40,
		ChainTimeout:           15 * time.Second,
		ChainBreakerFailures:   3,
		ChainBreakerCooldown:   30 * time.Second,
		ChainCacheTTL:          time.Minute,
		StoreBackend:           "memory",
		RedisAddr:              "localhost:6379",
		ReputationTimeout:      10 * time.Second,
		SkipStakedDestination:  true,
		MinSelfStake:           10_000,
		Commission:             15,
		UnclaimedEraThreshold:  4,
		MinConnectionTime:      7 * 24 * time.Hour,
		ClientUpgradeGrace:     18 * time.Hour,
		SecondaryRankThreshold: 25,
		Weights:                map[string]float64{},
		Parallelism:            1,
		ValiditySchedule:       "@every 15m",
		ScoringSchedule:        "@every 30m",
	}
}
