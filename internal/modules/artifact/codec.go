// Package artifact persists trained models as msgpack documents.
package artifact

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/creditrisk/internal/modules/calibration"
	"github.com/aristath/creditrisk/internal/modules/classifier"
	"github.com/aristath/creditrisk/internal/modules/features"
	"github.com/aristath/creditrisk/internal/modules/model"
)

// FormatVersion is bumped whenever the document layout changes incompatibly
const FormatVersion = 1

// ContentType is used for remote uploads
const ContentType = "application/vnd.msgpack"

type document struct {
	FormatVersion int                     `msgpack:"format_version"`
	ModelVersion  string                  `msgpack:"model_version"`
	CreatedAt     time.Time               `msgpack:"created_at"`
	SavedAt       time.Time               `msgpack:"saved_at"`
	Encoder       *features.FittedEncoder `msgpack:"encoder"`
	Classifier    classifier.State        `msgpack:"classifier"`
	Calibrator    calibration.State       `msgpack:"calibrator"`
	Profile       model.Profile           `msgpack:"profile"`
}

// Encode serializes a trained model
func Encode(m *model.TrainedModel) ([]byte, error) {
	clf, err := classifier.Pack(m.Classifier)
	if err != nil {
		return nil, err
	}
	cal, err := calibration.Pack(m.Calibrator)
	if err != nil {
		return nil, err
	}

	doc := document{
		FormatVersion: FormatVersion,
		ModelVersion:  m.Version,
		CreatedAt:     m.CreatedAt,
		SavedAt:       time.Now().UTC(),
		Encoder:       m.Encoder,
		Classifier:    clf,
		Calibrator:    cal,
		Profile:       m.Profile,
	}
	data, err := msgpack.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode model artifact: %w", err)
	}
	return data, nil
}

// Decode restores a trained model and checks that its parts fit together
func Decode(data []byte) (*model.TrainedModel, error) {
	var doc document
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}
	if doc.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported artifact format version %d (expected %d)", doc.FormatVersion, FormatVersion)
	}
	if doc.Encoder == nil {
		return nil, fmt.Errorf("model artifact %s has no encoder", doc.ModelVersion)
	}

	clf, err := doc.Classifier.Model()
	if err != nil {
		return nil, err
	}
	cal, err := doc.Calibrator.Calibrator()
	if err != nil {
		return nil, err
	}

	m := &model.TrainedModel{
		Version:    doc.ModelVersion,
		CreatedAt:  doc.CreatedAt,
		Encoder:    doc.Encoder,
		Classifier: clf,
		Calibrator: cal,
		Profile:    doc.Profile,
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model artifact %s is inconsistent: %w", doc.ModelVersion, err)
	}
	return m, nil
}
