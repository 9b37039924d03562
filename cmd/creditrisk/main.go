// Package main is the entry point for creditrisk, which trains probability-of-default
// models, publishes them as artifacts and serves scores over HTTP.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/aristath/creditrisk/pkg/logger"
)

const debugFlag = "debug"

var (
	name    = "creditrisk"
	version = "v0.0.1-default"
	commit  = ""
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Command failed")
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    name,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Usage:   "Credit risk probability-of-default scoring",
		Reader:  os.Stdin,
		Writer:  os.Stdout,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  debugFlag,
				Usage: "Force debug logging regardless of LOG_LEVEL",
			},
		},
		Commands: []*cli.Command{
			trainCmd(),
			scoreCmd(),
			serveCmd(),
			sampleCmd(),
			runsCmd(),
		},
	}
}
