// Package s3 stores recorded card object tables as JSON snapshots in S3/MinIO.
package s3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/cardcontact/cardfs/internal/logging"
	"github.com/cardcontact/cardfs/internal/source"
	"github.com/cardcontact/cardfs/pkg/models"
	"github.com/cardcontact/cardfs/pkg/mscfs"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// Store reads and writes snapshots in one bucket.
type Store struct {
	client *s3.Client
	bucket string
}

// New creates a path-style S3 client for cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Load downloads and decodes the snapshot at key.
func (s *Store) Load(ctx context.Context, key string) ([]models.Entry, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	entries, err := source.ReadSnapshot(out.Body)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", key, err)
	}
	logging.Debug("S3 snapshot loaded",
		zap.String("key", key),
		zap.Int("objects", len(entries)))
	return entries, nil
}

// Upload stores entries as a JSON snapshot at key.
func (s *Store) Upload(ctx context.Context, key, card string, entries []models.Entry) error {
	var buf bytes.Buffer
	if err := source.WriteSnapshot(&buf, card, entries); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(int64(buf.Len())),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	logging.Debug("S3 snapshot stored", zap.String("key", key), zap.Int("size", buf.Len()))
	return nil
}

// Lister returns a card lister that downloads the snapshot on every restart.
func (s *Store) Lister(ctx context.Context, key string) mscfs.Lister {
	return source.NewReplay(func() ([]models.Entry, error) {
		return s.Load(ctx, key)
	})
}
