package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/aristath/creditrisk/internal/modules/dataset"
)

const (
	rowsFlag   = "rows"
	outputFlag = "output"
)

func sampleCmd() *cli.Command {
	return &cli.Command{
		Name:   "sample",
		Usage:  "Write a synthetic labeled dataset as CSV",
		Action: runSample,
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  rowsFlag,
				Usage: "Number of applications to generate",
				Value: 5000,
			},
			&cli.Int64Flag{
				Name:  seedFlag,
				Usage: "Generator seed; the same seed yields the same file",
				Value: 42,
			},
			&cli.StringFlag{
				Name:    outputFlag,
				Aliases: []string{"o"},
				Usage:   "Destination file (- writes stdout)",
				Value:   "-",
			},
		},
	}
}

func runSample(ctx context.Context, cmd *cli.Command) error {
	rows := cmd.Int64(rowsFlag)
	if rows <= 0 {
		return fmt.Errorf("--%s must be positive, got %d", rowsFlag, rows)
	}
	records := dataset.Generate(int(rows), uint64(cmd.Int64(seedFlag)))

	var w io.Writer = cmd.Root().Writer
	if path := cmd.String(outputFlag); path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	return dataset.WriteCSV(w, records)
}
