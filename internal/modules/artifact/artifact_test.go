package artifact

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/internal/modules/calibration"
	"github.com/aristath/creditrisk/internal/modules/classifier"
	"github.com/aristath/creditrisk/internal/modules/dataset"
	"github.com/aristath/creditrisk/internal/modules/model"
	"github.com/aristath/creditrisk/internal/modules/training"
)

var probe = domain.ApplicantRecord{
	Age: 41, Income: 38000, HomeOwnership: "RENT", EmploymentLength: 2, LoanIntent: "MEDICAL",
	LoanGrade: "C", LoanAmount: 9000, InterestRate: 13.2, LoanPercentIncome: 0.24,
	PreviousDefault: "Y", CreditHistoryLength: 12,
}

func trainModel(t *testing.T, variant classifier.Variant, method calibration.Method) *model.TrainedModel {
	t.Helper()
	cfg := training.DefaultConfig()
	cfg.ClassifierVariant = variant
	cfg.CalibrationMethod = method
	cfg.Forest.Trees = 10
	cfg.Boosting.Rounds = 20
	trainer, err := training.NewTrainer(cfg, zerolog.Nop())
	require.NoError(t, err)
	result, err := trainer.Train(context.Background(), dataset.Generate(500, 17))
	require.NoError(t, err)
	return result.Model
}

func TestEncodeDecode_PreservesPredictions(t *testing.T) {
	testCases := []struct {
		variant classifier.Variant
		method  calibration.Method
	}{
		{classifier.VariantLogisticRegression, calibration.MethodIdentity},
		{classifier.VariantRandomForest, calibration.MethodIsotonic},
		{classifier.VariantGradientBoosting, calibration.MethodSigmoid},
	}

	for _, tc := range testCases {
		t.Run(string(tc.variant), func(t *testing.T) {
			original := trainModel(t, tc.variant, tc.method)

			data, err := Encode(original)
			require.NoError(t, err)
			restored, err := Decode(data)
			require.NoError(t, err)

			assert.Equal(t, original.Version, restored.Version)
			assert.True(t, original.CreatedAt.Equal(restored.CreatedAt))
			assert.Equal(t, tc.method, restored.Calibrator.Method())
			assert.Equal(t, original.Profile, restored.Profile)

			want, err := original.Predict(probe)
			require.NoError(t, err)
			got, err := restored.Predict(probe)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDecode_RejectsBadDocuments(t *testing.T) {
	_, err := Decode([]byte("not msgpack"))
	assert.Error(t, err)

	data, err := msgpack.Marshal(&document{FormatVersion: FormatVersion + 1})
	require.NoError(t, err)
	_, err = Decode(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format version")

	m := trainModel(t, classifier.VariantLogisticRegression, calibration.MethodIdentity)
	m.Classifier = &classifier.LogisticModel{Weights: []float64{1, 2, 3}}
	data, err = Encode(m)
	require.NoError(t, err)
	_, err = Decode(data)
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Load(ctx, DefaultKey)
	assert.True(t, errors.Is(err, domain.ErrModelNotLoaded))

	m := trainModel(t, classifier.VariantLogisticRegression, calibration.MethodIdentity)
	require.NoError(t, store.Save(ctx, DefaultKey, m))

	loaded, err := store.Load(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, m.Version, loaded.Version)

	assert.Equal(t, store.Location("model.msgpack"), store.Location("../../model.msgpack"))
	assert.Equal(t, store.Location(DefaultKey), store.Location(""))
}

type memoryBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *memoryBucket) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[*input.Bucket+"/"+*input.Key] = data
	return &manager.UploadOutput{}, nil
}

func (b *memoryBucket) Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error) {
	b.mu.Lock()
	data, ok := b.objects[*input.Bucket+"/"+*input.Key]
	b.mu.Unlock()
	if !ok {
		return 0, &types.NoSuchKey{}
	}
	n, err := w.WriteAt(data, 0)
	return int64(n), err
}

func TestS3Store(t *testing.T) {
	bucket := &memoryBucket{objects: make(map[string][]byte)}
	store := newS3Store("models", "/creditrisk/", bucket, bucket, zerolog.Nop())
	ctx := context.Background()

	assert.Equal(t, "s3://models/creditrisk/model.msgpack", store.Location(DefaultKey))

	_, err := store.Load(ctx, DefaultKey)
	assert.True(t, errors.Is(err, domain.ErrModelNotLoaded))

	m := trainModel(t, classifier.VariantGradientBoosting, calibration.MethodIdentity)
	require.NoError(t, store.Save(ctx, DefaultKey, m))
	assert.Contains(t, bucket.objects, "models/creditrisk/model.msgpack")

	loaded, err := store.Load(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, m.Version, loaded.Version)
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Region: "eu-west-1"}, zerolog.Nop())
	assert.True(t, errors.Is(err, domain.ErrInvalidConfiguration))
}
