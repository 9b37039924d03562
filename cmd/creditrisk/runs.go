package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/aristath/creditrisk/internal/modules/runs"
)

const (
	limitFlag = "limit"
	idFlag    = "id"
)

func runsCmd() *cli.Command {
	return &cli.Command{
		Name:   "runs",
		Usage:  "List recorded training runs, or print one full report",
		Action: runRuns,
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  limitFlag,
				Usage: "Maximum number of runs to list, newest first",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  idFlag,
				Usage: "Print the report of this run instead of the list",
			},
		},
	}
}

func runRuns(ctx context.Context, cmd *cli.Command) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	db, err := e.openRunsDB()
	if err != nil {
		return err
	}
	defer db.Close()
	repo := runs.NewRepository(db.Conn(), e.log)

	if id := cmd.String(idFlag); id != "" {
		report, err := repo.Get(id)
		if err != nil {
			return err
		}
		if report == nil {
			return fmt.Errorf("training run %s not found", id)
		}
		return e.printJSON(report)
	}

	list, err := repo.List(int(cmd.Int64(limitFlag)))
	if err != nil {
		return err
	}
	return e.printJSON(list)
}
