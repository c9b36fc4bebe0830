package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Usage:   "YAML configuration file",
	EnvVars: []string{"OTV_CONFIG"},
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "otv",
		Usage: "validator selection: validity checks, scoring and nomination classification",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			commandServe,
			commandCheck,
			commandScore,
		},
		DefaultCommand: commandServe.Name,
	}
}

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics;
	// system metrics are collected by the serve command instead.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
