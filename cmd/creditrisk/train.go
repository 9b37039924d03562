package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/aristath/creditrisk/internal/config"
	"github.com/aristath/creditrisk/internal/modules/calibration"
	"github.com/aristath/creditrisk/internal/modules/classifier"
	"github.com/aristath/creditrisk/internal/modules/dataset"
	"github.com/aristath/creditrisk/internal/modules/runs"
	"github.com/aristath/creditrisk/internal/modules/training"
)

const (
	dataFlag        = "data"
	trainConfigFlag = "config"
	variantFlag     = "variant"
	seedFlag        = "seed"
	calibrationFlag = "calibration"
)

func trainCmd() *cli.Command {
	return &cli.Command{
		Name:   "train",
		Usage:  "Train a model, publish the artifact and record the run",
		Action: runTrain,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     dataFlag,
				Usage:    "Labeled applications CSV with a loan_status column",
				Required: true,
			},
			&cli.StringFlag{
				Name:    trainConfigFlag,
				Aliases: []string{"c"},
				Usage:   "Training configuration YAML (optional, defaults apply to missing options)",
				Sources: cli.EnvVars("TRAINING_CONFIG"),
			},
			&cli.StringFlag{
				Name:  variantFlag,
				Usage: "Classifier variant: logistic_regression, random_forest or gradient_boosting",
			},
			&cli.Int64Flag{
				Name:  seedFlag,
				Usage: "Random seed for the split and the classifier",
			},
			&cli.StringFlag{
				Name:  calibrationFlag,
				Usage: "Calibration method: identity, sigmoid or isotonic",
			},
		},
	}
}

// trainingConfig layers command line overrides on top of the YAML configuration
func trainingConfig(cmd *cli.Command) (training.Config, error) {
	cfg, err := config.LoadTrainingConfig(cmd.String(trainConfigFlag))
	if err != nil {
		return cfg, err
	}
	if cmd.IsSet(variantFlag) {
		cfg.ClassifierVariant = classifier.Variant(cmd.String(variantFlag))
	}
	if cmd.IsSet(seedFlag) {
		cfg.RandomSeed = cmd.Int64(seedFlag)
	}
	if cmd.IsSet(calibrationFlag) {
		cfg.CalibrationMethod = calibration.Method(cmd.String(calibrationFlag))
	}
	return cfg, cfg.Validate()
}

func runTrain(ctx context.Context, cmd *cli.Command) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	log := e.log.With().Str("command", "train").Logger()

	tcfg, err := trainingConfig(cmd)
	if err != nil {
		return err
	}
	trainer, err := training.NewTrainer(tcfg, e.log)
	if err != nil {
		return err
	}

	path := cmd.String(dataFlag)
	records, stats, err := dataset.LoadFile(path)
	if err != nil {
		return err
	}
	log.Info().
		Str("path", path).
		Int("rows", stats.Rows).
		Int("loaded", stats.Loaded).
		Int("skipped", stats.Skipped).
		Msg("Training data loaded")

	result, err := trainer.Train(ctx, records)
	if err != nil {
		return err
	}

	// The registry must be reachable before anything is published, so a
	// served model always has a recorded run.
	db, err := e.openRunsDB()
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	key := e.cfg.Artifact.Key
	if err := store.Save(ctx, key, result.Model); err != nil {
		return fmt.Errorf("failed to publish model: %w", err)
	}

	repo := runs.NewRepository(db.Conn(), e.log)
	if err := repo.Record(result.Report, store.Location(key)); err != nil {
		return err
	}

	log.Info().
		Str("run_id", result.Report.RunID).
		Str("model_version", result.Report.ModelVersion).
		Str("artifact", store.Location(key)).
		Float64("roc_auc", result.Report.Metrics.ROCAUC).
		Msg("Model published")

	return e.printJSON(result.Report)
}
