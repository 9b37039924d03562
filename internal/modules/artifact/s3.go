package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/internal/modules/model"
)

// S3Config holds the remote artifact location and credentials
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // optional, for S3-compatible services
	AccessKeyID     string
	SecretAccessKey string
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

// S3Store keeps artifacts in an S3 bucket
type S3Store struct {
	bucket     string
	prefix     string
	uploader   uploader
	downloader downloader
	log        zerolog.Logger
}

// NewS3Store builds an S3 client from cfg. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func NewS3Store(ctx context.Context, cfg S3Config, log zerolog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, &domain.InvalidConfigurationError{Option: "S3_BUCKET", Reason: "required for the s3 artifact backend"}
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(cfg.Bucket, cfg.Prefix, manager.NewUploader(client), manager.NewDownloader(client), log), nil
}

func newS3Store(bucket, prefix string, up uploader, down downloader, log zerolog.Logger) *S3Store {
	return &S3Store{
		bucket:     bucket,
		prefix:     strings.Trim(prefix, "/"),
		uploader:   up,
		downloader: down,
		log:        log.With().Str("component", "artifact_store").Str("backend", "s3").Logger(),
	}
}

func (s *S3Store) objectKey(key string) string {
	return path.Join(s.prefix, cleanKey(key))
}

func (s *S3Store) Location(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.objectKey(key))
}

func (s *S3Store) Save(ctx context.Context, key string, m *model.TrainedModel) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentType),
		Metadata:    map[string]string{"model-version": m.Version},
	})
	if err != nil {
		return fmt.Errorf("failed to upload artifact to %s: %w", s.Location(key), err)
	}

	s.log.Info().Str("location", s.Location(key)).Str("model_version", m.Version).Int("bytes", len(data)).Msg("Model artifact uploaded")
	return nil
}

func (s *S3Store) Load(ctx context.Context, key string) (*model.TrainedModel, error) {
	buf := manager.NewWriteAtBuffer(nil)
	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%w: no artifact at %s", domain.ErrModelNotLoaded, s.Location(key))
		}
		return nil, fmt.Errorf("failed to download artifact from %s: %w", s.Location(key), err)
	}

	m, err := Decode(buf.Bytes())
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("location", s.Location(key)).Str("model_version", m.Version).Msg("Model artifact downloaded")
	return m, nil
}
