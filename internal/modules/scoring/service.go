// Package scoring turns applicant records into calibrated probabilities of
// default, risk tiers and risk-reduction guidance.
package scoring

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/internal/modules/bucketing"
	"github.com/aristath/creditrisk/internal/modules/model"
)

// UnseenCategory is a categorical input that was scored through the unknown slot
type UnseenCategory struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Assessment is the full answer for one applicant
type Assessment struct {
	domain.PDResult
	Recommendation   string           `json:"recommendation"`
	Guidance         []Guidance       `json:"guidance"`
	UnseenCategories []UnseenCategory `json:"unseen_categories"`
	ModelVersion     string           `json:"model_version"`
}

// Service scores applicants against the currently loaded model
type Service struct {
	current    atomic.Pointer[model.TrainedModel]
	bucketizer *bucketing.Bucketizer
	opts       Options
	metrics    *Metrics
	log        zerolog.Logger
}

// NewService creates a scoring service. m may be nil; Score then fails with
// ErrModelNotLoaded until a model is swapped in. metrics may be nil.
func NewService(m *model.TrainedModel, bucketizer *bucketing.Bucketizer, opts Options, log zerolog.Logger, metrics *Metrics) (*Service, error) {
	if bucketizer == nil {
		return nil, &domain.InvalidConfigurationError{Option: "bucketizer", Reason: "is required"}
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		bucketizer: bucketizer,
		opts:       opts,
		metrics:    metrics,
		log:        log.With().Str("component", "scoring").Logger(),
	}
	if m != nil {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("invalid model: %w", err)
		}
		s.current.Store(m)
	}
	return s, nil
}

// Current returns the model used for new requests, or nil
func (s *Service) Current() *model.TrainedModel {
	return s.current.Load()
}

// Swap installs a new model. Requests already running finish on the model they loaded.
func (s *Service) Swap(m *model.TrainedModel) error {
	if m == nil {
		return fmt.Errorf("cannot swap in a nil model")
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid model: %w", err)
	}
	prev := s.current.Swap(m)
	s.metrics.observeSwap()

	event := s.log.Info().Str("version", m.Version)
	if prev != nil {
		event = event.Str("previous_version", prev.Version)
	}
	event.Msg("Serving model replaced")
	return nil
}

// Score assesses a single applicant
func (s *Service) Score(record domain.ApplicantRecord) (*Assessment, error) {
	m := s.current.Load()
	if m == nil {
		s.metrics.observeFailure("no_model")
		return nil, domain.ErrModelNotLoaded
	}
	return s.assess(m, record)
}

func (s *Service) assess(m *model.TrainedModel, record domain.ApplicantRecord) (*Assessment, error) {
	start := time.Now()

	if err := record.Validate(); err != nil {
		s.metrics.observeFailure("invalid_applicant")
		return nil, err
	}

	pred, err := m.Predict(record)
	if err != nil {
		s.metrics.observeFailure("predict")
		return nil, fmt.Errorf("failed to score applicant: %w", err)
	}

	unseen := m.Encoder.Unseen(record)
	fallbacks := make([]UnseenCategory, 0, len(unseen))
	fields := make([]string, 0, len(unseen))
	for _, u := range unseen {
		fallbacks = append(fallbacks, UnseenCategory{Field: u.Field, Value: u.Value})
		fields = append(fields, u.Field)
		s.log.Debug().Str("field", u.Field).Str("value", u.Value).Msg("Unseen category scored as unknown")
	}

	tier := s.bucketizer.Classify(pred.PD)
	guidance := explain(m.Encoder.Features(), m.Profile.Importances, m.Profile.Directions, pred.Vector, pred.PD, s.opts)

	s.metrics.observeScore(tier, pred.PD, fields, time.Since(start))

	return &Assessment{
		PDResult: domain.PDResult{
			RawScore:     pred.Raw,
			CalibratedPD: pred.PD,
			RiskTier:     tier,
		},
		Recommendation:   tier.Recommendation(),
		Guidance:         guidance,
		UnseenCategories: fallbacks,
		ModelVersion:     m.Version,
	}, nil
}

// BatchItem is one entry of a batch response. Exactly one of Assessment and Error is set.
type BatchItem struct {
	Index      int         `json:"index"`
	Assessment *Assessment `json:"assessment,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// ScoreBatch scores every record against the same model. Invalid records are reported
// per item; a missing model fails the whole batch.
func (s *Service) ScoreBatch(records []domain.ApplicantRecord) ([]BatchItem, error) {
	m := s.current.Load()
	if m == nil {
		s.metrics.observeFailure("no_model")
		return nil, domain.ErrModelNotLoaded
	}

	items := make([]BatchItem, len(records))
	for i, r := range records {
		items[i].Index = i
		a, err := s.assess(m, r)
		if err != nil {
			items[i].Error = err.Error()
			continue
		}
		items[i].Assessment = a
	}
	return items, nil
}
