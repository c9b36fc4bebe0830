package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// listKeys are env-provided keys holding comma separated lists.
var listKeys = map[string]bool{
	"chain_endpoints":    true,
	"provider_blacklist": true,
}

// weightsEnvPrefix marks env keys that set one score weight.
const weightsEnvPrefix = "weights_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if OTV_CONFIG is set
//  3. env (prefix OTV_)
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, os.Getenv("OTV_CONFIG"))
}

// LoadFrom is Load with the YAML file given explicitly; an empty path skips
// the file layer.
func LoadFrom(_ context.Context, path string) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Environment variables: OTV_ADDR, OTV_COMMISSION, ...
	// Map env keys like OTV_MIN_SELF_STAKE -> min_self_stake (flat keys),
	// except OTV_WEIGHTS_<NAME> -> weights.<name>.
	envProvider := env.ProviderWithValue("OTV_", ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(strings.ToLower(key), "otv_")
		if key == "config" {
			return "", nil
		}
		if listKeys[key] {
			return key, splitList(value)
		}
		if name, ok := strings.CutPrefix(key, weightsEnvPrefix); ok && name != "" {
			return "weights." + name, value
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks option combinations that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreBackend != "memory" && c.StoreBackend != "redis":
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	case c.StoreBackend == "redis" && c.RedisAddr == "":
		return fmt.Errorf("%w: redis_addr required for redis store", ErrInvalidConfig)
	case c.Commission < 0 || c.Commission > 100:
		return fmt.Errorf("%w: commission must be within [0, 100]", ErrInvalidConfig)
	case c.MinSelfStake < 0:
		return fmt.Errorf("%w: min_self_stake must not be negative", ErrInvalidConfig)
	case c.UnclaimedEraThreshold < 0:
		return fmt.Errorf("%w: unclaimed_era_threshold must not be negative", ErrInvalidConfig)
	}
	for name, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("%w: weight %q is negative", ErrInvalidConfig, name)
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
