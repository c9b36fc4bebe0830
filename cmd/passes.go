package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var topFlag = &cli.IntFlag{
	Name:  "top",
	Usage: "number of scores to print",
	Value: 10,
}

var commandCheck = &cli.Command{
	Name:  "check",
	Usage: "run one validity pass over every candidate and exit",
	Action: func(c *cli.Context) error {
		ctx := c.Context
		_, svc, err := setup(ctx, c)
		if err != nil {
			return err
		}
		if err := svc.Open(ctx); err != nil {
			return err
		}
		defer svc.Stop()

		valid, err := svc.RunValidity(ctx)
		if err != nil {
			return err
		}
		all, err := svc.Candidates(ctx, false)
		if err != nil {
			return err
		}
		for _, cand := range all {
			if cand.Valid {
				continue
			}
			for _, r := range cand.Invalidity.Failing() {
				fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", cand.Stash, r.Kind, r.Detail)
			}
		}
		fmt.Fprintf(c.App.Writer, "%d of %d candidates valid\n", valid, len(all))
		return nil
	},
}

var commandScore = &cli.Command{
	Name:  "score",
	Usage: "score the valid candidates for the current session and exit",
	Flags: []cli.Flag{topFlag},
	Action: func(c *cli.Context) error {
		ctx := c.Context
		_, svc, err := setup(ctx, c)
		if err != nil {
			return err
		}
		if err := svc.Open(ctx); err != nil {
			return err
		}
		defer svc.Stop()

		records, err := svc.RunScoring(ctx)
		if err != nil {
			return err
		}
		for i, r := range records {
			if i >= c.Int(topFlag.Name) {
				break
			}
			fmt.Fprintf(c.App.Writer, "%d\t%s\t%.2f\n", i+1, r.Address, r.Total)
		}
		fmt.Fprintf(c.App.Writer, "%d candidates scored\n", len(records))
		return nil
	},
}
