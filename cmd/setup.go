package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	service "github.com/okian/otv/internal/app"
	"github.com/okian/otv/internal/config"
	"github.com/okian/otv/pkg/logger"
)

// setup loads configuration, initialises logging and builds the service.
func setup(ctx context.Context, c *cli.Context) (*config.Config, *service.Service, error) {
	cfg, err := config.LoadFrom(ctx, c.String(configFlag.Name))
	if err != nil {
		return nil, nil, err
	}

	if err := logger.Init(); err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	return cfg, service.New(cfg, service.WithLogger(log)), nil
}
