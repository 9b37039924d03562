package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/creditrisk/internal/domain"
)

const applicant = `{
	"person_age": 30,
	"person_income": 75000,
	"person_home_ownership": "MORTGAGE",
	"person_emp_length": 5,
	"loan_intent": "EDUCATION",
	"loan_grade": "A",
	"loan_amnt": 15000,
	"loan_int_rate": 7.5,
	"loan_percent_income": 0.2,
	"cb_person_default_on_file": "N",
	"cb_person_cred_hist_length": 5
}`

func setupEnv(t *testing.T) string {
	t.Helper()
	for _, k := range []string{"ARTIFACT_BACKEND", "ARTIFACT_KEY", "S3_BUCKET", "PORT", "TRAINING_CONFIG",
		"RISK_LOW_THRESHOLD", "RISK_HIGH_THRESHOLD", "GUIDANCE_TOP_K", "GUIDANCE_MIN_IMPACT"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Setenv("CREDITRISK_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run(context.Background(), append([]string{name}, args...))
	return out.String(), err
}

func TestSample(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "sample", "--rows", "25", "--seed", "3")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 26, "header plus one line per row")
	assert.Contains(t, lines[0], "loan_status")

	again, err := run(t, "sample", "--rows", "25", "--seed", "3")
	require.NoError(t, err)
	assert.Equal(t, out, again)

	_, err = run(t, "sample", "--rows", "0")
	assert.Error(t, err)
}

func TestTrainScoreAndRuns(t *testing.T) {
	dir := setupEnv(t)
	data := filepath.Join(dir, "train.csv")
	_, err := run(t, "sample", "--rows", "2000", "--seed", "11", "--output", data)
	require.NoError(t, err)

	out, err := run(t, "train", "--data", data, "--variant", "logistic_regression", "--seed", "5")
	require.NoError(t, err)
	var report struct {
		RunID        string `json:"run_id"`
		ModelVersion string `json:"model_version"`
		Seed         int64  `json:"seed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, int64(5), report.Seed)
	assert.FileExists(t, filepath.Join(dir, "data", "models", "model.msgpack"))

	input := filepath.Join(dir, "applicant.json")
	require.NoError(t, os.WriteFile(input, []byte(applicant), 0644))
	out, err = run(t, "score", "--input", input)
	require.NoError(t, err)
	var assessment struct {
		CalibratedPD float64         `json:"calibrated_pd"`
		RiskTier     domain.RiskTier `json:"risk_tier"`
		ModelVersion string          `json:"model_version"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &assessment))
	assert.Equal(t, report.ModelVersion, assessment.ModelVersion)
	assert.GreaterOrEqual(t, assessment.CalibratedPD, 0.0)
	assert.LessOrEqual(t, assessment.CalibratedPD, 1.0)
	assert.NotEmpty(t, assessment.RiskTier)

	batch := filepath.Join(dir, "batch.json")
	require.NoError(t, os.WriteFile(batch, []byte("["+applicant+","+applicant+"]"), 0644))
	out, err = run(t, "score", "--input", batch)
	require.NoError(t, err)
	var batchOut struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &batchOut))
	assert.Equal(t, 2, batchOut.Count)

	out, err = run(t, "runs")
	require.NoError(t, err)
	var list []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, report.RunID, list[0].ID)

	out, err = run(t, "runs", "--id", report.RunID)
	require.NoError(t, err)
	assert.Contains(t, out, report.ModelVersion)

	_, err = run(t, "runs", "--id", "missing")
	assert.Error(t, err)
}

func TestTrain_RejectsInvalidOverrides(t *testing.T) {
	dir := setupEnv(t)
	data := filepath.Join(dir, "train.csv")
	_, err := run(t, "sample", "--rows", "50", "--output", data)
	require.NoError(t, err)

	_, err = run(t, "train", "--data", data, "--variant", "svm")
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = run(t, "train", "--data", data, "--calibration", "platt")
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestTrain_UnreachableRegistryPublishesNothing(t *testing.T) {
	dir := setupEnv(t)
	data := filepath.Join(dir, "train.csv")
	_, err := run(t, "sample", "--rows", "500", "--output", data)
	require.NoError(t, err)

	// a directory where the registry file should be cannot be opened as SQLite
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data", "runs.db"), 0755))

	_, err = run(t, "train", "--data", data, "--variant", "logistic_regression")
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "data", "models", "model.msgpack"))
}

func TestScore_WithoutPublishedModel(t *testing.T) {
	dir := setupEnv(t)
	input := filepath.Join(dir, "applicant.json")
	require.NoError(t, os.WriteFile(input, []byte(applicant), 0644))

	_, err := run(t, "score", "--input", input)
	assert.ErrorIs(t, err, domain.ErrModelNotLoaded)
}

func TestScore_RejectsInvalidPayload(t *testing.T) {
	dir := setupEnv(t)
	input := filepath.Join(dir, "applicant.json")
	require.NoError(t, os.WriteFile(input, []byte(`{"person_age": 30}`), 0644))

	// validation happens after the model is loaded, so publish one first
	data := filepath.Join(dir, "train.csv")
	_, err := run(t, "sample", "--rows", "500", "--output", data)
	require.NoError(t, err)
	_, err = run(t, "train", "--data", data, "--variant", "logistic_regression")
	require.NoError(t, err)

	_, err = run(t, "score", "--input", input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload validation failed")
}
