package config_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/okian/otv/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.MinSelfStake, convey.ShouldEqual, 10_000)
				convey.So(cfg.UnclaimedEraThreshold, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("OTV_ADDR", ":8080")
			_ = os.Setenv("OTV_COMMISSION", "10")
			_ = os.Setenv("OTV_MIN_SELF_STAKE", "50000")
			_ = os.Setenv("OTV_SKIP_IDENTITY", "true")
			_ = os.Setenv("OTV_MIN_CONNECTION_TIME", "48h")
			_ = os.Setenv("OTV_PROVIDER_BLACKLIST", "Hetzner Online GmbH, Contabo GmbH")
			_ = os.Setenv("OTV_CHAIN_ENDPOINTS", "http://a:8080,http://b:8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Commission, convey.ShouldEqual, 10)
				convey.So(cfg.MinSelfStake, convey.ShouldEqual, 50000)
				convey.So(cfg.SkipIdentity, convey.ShouldBeTrue)
				convey.So(cfg.MinConnectionTime, convey.ShouldEqual, 48*time.Hour)
				convey.So(cfg.ProviderBlacklist, convey.ShouldResemble, []string{"Hetzner Online GmbH", "Contabo GmbH"})
				convey.So(cfg.ChainEndpoints, convey.ShouldResemble, []string{"http://a:8080", "http://b:8080"})
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
store_backend: redis
redis_addr: "redis:6379"
unclaimed_era_threshold: 2
provider_blacklist:
  - "Hetzner Online GmbH"
weights:
  bonded: 60
  provider: 0
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("OTV_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, "redis")
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "redis:6379")
				convey.So(cfg.UnclaimedEraThreshold, convey.ShouldEqual, 2)
				convey.So(cfg.ProviderBlacklist, convey.ShouldResemble, []string{"Hetzner Online GmbH"})
				convey.So(cfg.Weights["bonded"], convey.ShouldEqual, 60)
				convey.So(cfg.Weights, convey.ShouldContainKey, "provider")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile("addr: \":9090\"\ncommission: 8\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("OTV_CONFIG", tmpFile)
			_ = os.Setenv("OTV_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Commission, convey.ShouldEqual, 8)
			})
		})

		convey.Convey("When weights come from both the file and environment variables", func() {
			tmpFile := createTempConfigFile("weights:\n  bonded: 60\n  provider: 0\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("OTV_CONFIG", tmpFile)
			_ = os.Setenv("OTV_WEIGHTS_BONDED", "80")
			_ = os.Setenv("OTV_WEIGHTS_SPAN_INCLUSION", "5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then each env var sets its own weight and the file fills the rest", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Weights["bonded"], convey.ShouldEqual, 80)
				convey.So(cfg.Weights["span_inclusion"], convey.ShouldEqual, 5)
				convey.So(cfg.Weights, convey.ShouldContainKey, "provider")
				convey.So(cfg.Weights, convey.ShouldNotContainKey, "weights_bonded")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("OTV_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldWrap, config.ErrLoadConfig)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("OTV_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("OTV_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("OTV_PARALLELISM", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"OTV_CONFIG",
		"OTV_ADDR",
		"OTV_COMMISSION",
		"OTV_MIN_SELF_STAKE",
		"OTV_SKIP_IDENTITY",
		"OTV_MIN_CONNECTION_TIME",
		"OTV_PROVIDER_BLACKLIST",
		"OTV_CHAIN_ENDPOINTS",
		"OTV_PARALLELISM",
		"OTV_WEIGHTS_BONDED",
		"OTV_WEIGHTS_SPAN_INCLUSION",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "otv-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
