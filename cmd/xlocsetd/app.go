package main

import (
	"fmt"

	"github.com/urfave/cli"
)

func newApp(version, build string) *cli.App {
	app := cli.NewApp()
	app.Name = "xlocsetd"
	app.Usage = "replica-set reconfiguration coordinator"
	app.Version = fmt.Sprintf("%s (build %s)", orDev(version), orDev(build))
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Usage: "path to a YAML config file"},
		cli.BoolFlag{Name: "verbose", Usage: "enable debug-level logging"},
	}
	app.Commands = []cli.Command{
		serveCommand,
		simulateCommand,
	}
	return app
}

func orDev(s string) string {
	if s == "" {
		return "dev"
	}
	return s
}
