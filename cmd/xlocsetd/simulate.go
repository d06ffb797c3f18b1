package main

import (
	"github.com/urfave/cli"

	"github.com/leusonmario/xtreemfs/internal/simulate"
	"github.com/leusonmario/xtreemfs/internal/xlog"
)

var simulateCommand = cli.Command{
	Name:  "simulate",
	Usage: "run the end-to-end reconfiguration scenarios against an in-memory OSD fake",
	Action: func(c *cli.Context) error {
		xlog.SetVerbose(c.GlobalBool("verbose"))
		if err := simulate.Run(); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		return nil
	},
}
