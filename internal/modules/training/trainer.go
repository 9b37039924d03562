// Package training runs the offline pipeline: split, encode, fit, calibrate and evaluate.
package training

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/internal/modules/calibration"
	"github.com/aristath/creditrisk/internal/modules/classifier"
	"github.com/aristath/creditrisk/internal/modules/dataset"
	"github.com/aristath/creditrisk/internal/modules/features"
	"github.com/aristath/creditrisk/internal/modules/model"
)

// Result is the output of a successful run
type Result struct {
	Model  *model.TrainedModel
	Report Report
}

// Trainer runs training jobs with a fixed configuration
type Trainer struct {
	cfg Config
	log zerolog.Logger
}

// NewTrainer validates cfg and returns a Trainer
func NewTrainer(cfg Config, log zerolog.Logger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Trainer{
		cfg: cfg,
		log: log.With().Str("component", "trainer").Logger(),
	}, nil
}

// Train fits a complete model on records and evaluates it on a stratified holdout
func (t *Trainer) Train(ctx context.Context, records []domain.LabeledRecord) (*Result, error) {
	started := time.Now()
	runID := uuid.NewString()
	log := t.log.With().Str("run_id", runID).Logger()

	if len(records) < features.MinFitRecords {
		return nil, &domain.InsufficientDataError{
			Reason: fmt.Sprintf("need at least %d labeled records, got %d", features.MinFitRecords, len(records)),
		}
	}

	applicants, labels := dataset.SplitLabels(records)
	seed := uint64(t.cfg.RandomSeed)
	trainIdx, testIdx := stratifiedSplit(labels, t.cfg.TestSplitRatio, seed)

	log.Info().
		Int("records", len(records)).
		Int("train", len(trainIdx)).
		Int("test", len(testIdx)).
		Str("variant", string(t.cfg.ClassifierVariant)).
		Msg("Starting training run")

	var warnings []string
	if w := classifier.CheckPrevalence(labels); w != nil {
		warnings = append(warnings, w.Error())
		log.Warn().Float64("prevalence", w.Prevalence).Msg("Label imbalance detected")
	}

	trainApplicants := make([]domain.ApplicantRecord, len(trainIdx))
	for i, j := range trainIdx {
		trainApplicants[i] = applicants[j]
	}
	enc, err := features.Fit(trainApplicants)
	if err != nil {
		return nil, fmt.Errorf("failed to fit encoder: %w", err)
	}
	X := enc.TransformAll(applicants)

	// Rows the classifier sees, and a disjoint holdout for the calibrator
	fitIdx, calIdx := trainIdx, []int(nil)
	if t.cfg.calibrates() {
		rest, held := stratifiedSplit(gatherLabels(labels, trainIdx), t.cfg.CalibrationFraction, seed+1)
		fitIdx = make([]int, len(rest))
		for i, j := range rest {
			fitIdx[i] = trainIdx[j]
		}
		calIdx = make([]int, len(held))
		for i, j := range held {
			calIdx[i] = trainIdx[j]
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clf, err := classifier.New(t.cfg.Classifier(), log)
	if err != nil {
		return nil, err
	}
	Xfit, yfit := gatherRows(X, fitIdx), gatherLabels(labels, fitIdx)
	fitted, err := clf.Fit(Xfit, yfit)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var cal calibration.Calibrator = calibration.Identity{}
	if t.cfg.calibrates() {
		scores, err := classifier.Predict(fitted, gatherRows(X, calIdx))
		if err != nil {
			return nil, err
		}
		cal, err = calibration.Fit(t.cfg.CalibrationMethod, scores, gatherLabels(labels, calIdx))
		if err != nil {
			return nil, fmt.Errorf("failed to fit calibrator: %w", err)
		}
	}

	profile := model.BuildProfile(Xfit, yfit, fitted.FeatureImportances())
	trained, err := model.New(enc, fitted, cal, profile)
	if err != nil {
		return nil, err
	}

	Xtest, ytest := gatherRows(X, testIdx), gatherLabels(labels, testIdx)
	raw, err := classifier.Predict(fitted, Xtest)
	if err != nil {
		return nil, err
	}
	pds := make([]float64, len(raw))
	for i, s := range raw {
		pds[i] = cal.Calibrate(s)
	}

	// Threshold metrics are taken on the PD the service reports; AUC ranks raw scores.
	metrics, err := classifier.EvaluateScores(pds, ytest, t.cfg.DecisionThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate model: %w", err)
	}
	if metrics.ROCAUC, err = classifier.ROCAUC(raw, ytest); err != nil {
		return nil, err
	}

	reliability, err := calibration.ReliabilityCurve(cal, raw, ytest, t.cfg.CalibrationBins)
	if err != nil {
		return nil, err
	}
	brier, err := calibration.BrierScore(cal, raw, ytest)
	if err != nil {
		return nil, err
	}

	positives := 0
	for _, l := range labels {
		if l {
			positives++
		}
	}

	report := Report{
		RunID:             runID,
		ModelVersion:      trained.Version,
		StartedAt:         started.UTC(),
		Duration:          time.Since(started),
		Variant:           fitted.Variant(),
		Seed:              t.cfg.RandomSeed,
		TrainSize:         len(fitIdx),
		CalibrationSize:   len(calIdx),
		TestSize:          len(testIdx),
		Prevalence:        float64(positives) / float64(len(labels)),
		Metrics:           metrics,
		CalibrationMethod: cal.Method(),
		BrierScore:        brier,
		Reliability:       reliability,
		Importances:       rankImportances(enc.FeatureNames(), profile.Importances),
		Warnings:          warnings,
	}

	log.Info().
		Str("model_version", trained.Version).
		Float64("roc_auc", metrics.ROCAUC).
		Float64("accuracy", metrics.Accuracy).
		Float64("brier", brier).
		Dur("duration", report.Duration).
		Msg("Training run completed")

	return &Result{Model: trained, Report: report}, nil
}
