package classifier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/creditrisk/internal/domain"
)

// DefaultDecisionThreshold is the score at or above which an applicant is predicted to default
const DefaultDecisionThreshold = 0.5

// ConfusionMatrix counts outcomes at a decision threshold
type ConfusionMatrix struct {
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalseNegatives int `json:"false_negatives"`
}

// Metrics summarises a model's performance on a held-out set
type Metrics struct {
	Threshold float64         `json:"threshold"`
	Support   int             `json:"support"`
	Positives int             `json:"positives"`
	Accuracy  float64         `json:"accuracy"`
	Precision float64         `json:"precision"`
	Recall    float64         `json:"recall"`
	F1        float64         `json:"f1"`
	ROCAUC    float64         `json:"roc_auc"`
	Confusion ConfusionMatrix `json:"confusion"`
}

// Predict scores every row of X
func Predict(m Model, X [][]float64) ([]float64, error) {
	scores := make([]float64, len(X))
	for i, row := range X {
		p, err := m.PredictProba(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		scores[i] = p
	}
	return scores, nil
}

// Evaluate scores X with m and computes metrics against y
func Evaluate(m Model, X [][]float64, y []bool, threshold float64) (Metrics, error) {
	if len(X) != len(y) {
		return Metrics{}, &domain.TrainingError{Reason: fmt.Sprintf("evaluation set has %d rows but %d labels", len(X), len(y))}
	}
	scores, err := Predict(m, X)
	if err != nil {
		return Metrics{}, err
	}
	return EvaluateScores(scores, y, threshold)
}

// EvaluateScores computes threshold metrics and ROC-AUC from precomputed scores
func EvaluateScores(scores []float64, y []bool, threshold float64) (Metrics, error) {
	if !(threshold > 0 && threshold < 1) {
		return Metrics{}, &domain.InvalidConfigurationError{Option: "decision_threshold", Reason: "must be in (0, 1)"}
	}
	if len(scores) != len(y) {
		return Metrics{}, &domain.TrainingError{Reason: fmt.Sprintf("%d scores but %d labels", len(scores), len(y))}
	}

	auc, err := ROCAUC(scores, y)
	if err != nil {
		return Metrics{}, err
	}

	var cm ConfusionMatrix
	for i, s := range scores {
		predicted := s >= threshold
		switch {
		case predicted && y[i]:
			cm.TruePositives++
		case predicted && !y[i]:
			cm.FalsePositives++
		case !predicted && y[i]:
			cm.FalseNegatives++
		default:
			cm.TrueNegatives++
		}
	}

	metrics := Metrics{
		Threshold: threshold,
		Support:   len(y),
		Positives: cm.TruePositives + cm.FalseNegatives,
		Accuracy:  float64(cm.TruePositives+cm.TrueNegatives) / float64(len(y)),
		Precision: ratio(cm.TruePositives, cm.TruePositives+cm.FalsePositives),
		Recall:    ratio(cm.TruePositives, cm.TruePositives+cm.FalseNegatives),
		ROCAUC:    auc,
		Confusion: cm,
	}
	if metrics.Precision+metrics.Recall > 0 {
		metrics.F1 = 2 * metrics.Precision * metrics.Recall / (metrics.Precision + metrics.Recall)
	}
	return metrics, nil
}

// ROCAUC computes the area under the ROC curve. Ties in scores are handled by
// treating each distinct score as one cutoff. The inputs are not modified.
func ROCAUC(scores []float64, y []bool) (float64, error) {
	if len(scores) != len(y) {
		return 0, &domain.TrainingError{Reason: fmt.Sprintf("%d scores but %d labels", len(scores), len(y))}
	}
	positives := 0
	for _, v := range y {
		if v {
			positives++
		}
	}
	if positives == 0 || positives == len(y) {
		return 0, &domain.InsufficientDataError{Reason: "ROC-AUC needs both classes in the evaluation set"}
	}

	s := append([]float64(nil), scores...)
	labels := append([]bool(nil), y...)
	stat.SortWeightedLabeled(s, labels, nil)

	tpr, fpr, _ := stat.ROC(nil, s, labels, nil)
	auc := integrate.Trapezoidal(fpr, tpr)
	if math.IsNaN(auc) {
		return 0, fmt.Errorf("ROC-AUC is undefined for the given scores")
	}
	return auc, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
