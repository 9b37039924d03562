package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/aristath/creditrisk/internal/modules/bucketing"
	"github.com/aristath/creditrisk/internal/modules/scoring"
	"github.com/aristath/creditrisk/internal/modules/scoring/handlers"
)

const inputFlag = "input"

func scoreCmd() *cli.Command {
	return &cli.Command{
		Name:   "score",
		Usage:  "Score applicants against the published model",
		Action: runScore,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     inputFlag,
				Aliases:  []string{"i"},
				Usage:    "Applicant JSON file, a single object or an array (- reads stdin)",
				Required: true,
			},
		},
	}
}

func readInput(cmd *cli.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.Root().Reader)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

func runScore(ctx context.Context, cmd *cli.Command) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	body, err := readInput(cmd, cmd.String(inputFlag))
	if err != nil {
		return err
	}

	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	m, err := store.Load(ctx, e.cfg.Artifact.Key)
	if err != nil {
		return err
	}

	bucketizer, err := bucketing.New(e.cfg.Risk)
	if err != nil {
		return err
	}
	svc, err := scoring.NewService(m, bucketizer, e.cfg.Guidance, e.log, nil)
	if err != nil {
		return err
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		records, err := handlers.DecodeBatch(body)
		if err != nil {
			return err
		}
		items, err := svc.ScoreBatch(records)
		if err != nil {
			return err
		}
		return e.printJSON(map[string]interface{}{
			"results": items,
			"count":   len(items),
		})
	}

	record, err := handlers.DecodeApplicant(body)
	if err != nil {
		return err
	}
	assessment, err := svc.Score(record)
	if err != nil {
		return err
	}
	return e.printJSON(assessment)
}
