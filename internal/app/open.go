// Package app wires configuration to a card session.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cardcontact/cardfs/internal/config"
	"github.com/cardcontact/cardfs/internal/logging"
	"github.com/cardcontact/cardfs/internal/metrics"
	"github.com/cardcontact/cardfs/internal/source"
	"github.com/cardcontact/cardfs/internal/source/postgres"
	s3source "github.com/cardcontact/cardfs/internal/source/s3"
	"github.com/cardcontact/cardfs/pkg/mscfs"
)

// NewLister creates the listing source named by cfg.Source. The returned
// closer releases any connection the source holds.
func NewLister(ctx context.Context, cfg *config.Config) (mscfs.Lister, func() error, error) {
	nop := func() error { return nil }

	switch cfg.Source {
	case config.SourceJSON:
		f, err := os.Open(cfg.SnapshotPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open snapshot: %w", err)
		}
		defer f.Close()
		lister, err := source.LoadSnapshot(f)
		if err != nil {
			return nil, nil, err
		}
		return lister, nop, nil

	case config.SourcePostgres:
		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store.Lister(ctx, cfg.CardID), store.Close, nil

	case config.SourceS3:
		store, err := s3source.New(ctx, S3Config(cfg))
		if err != nil {
			return nil, nil, err
		}
		return store.Lister(ctx, cfg.S3Key), nop, nil

	default:
		return nil, nil, fmt.Errorf("unknown source: %s", cfg.Source)
	}
}

// S3Config maps the S3_* settings to a store configuration.
func S3Config(cfg *config.Config) s3source.Config {
	endpoint := cfg.S3Endpoint
	if cfg.S3UseSSL && strings.HasPrefix(endpoint, "http://") {
		endpoint = "https://" + strings.TrimPrefix(endpoint, "http://")
	}
	return s3source.Config{
		Endpoint:  endpoint,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Region:    cfg.S3Region,
	}
}

// OpenSession creates a session over the configured source with logging and
// metrics attached. The closer tears down the session and its source.
func OpenSession(ctx context.Context, cfg *config.Config) (*mscfs.Session, func() error, error) {
	lister, closeSource, err := NewLister(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	s := mscfs.New(lister,
		mscfs.WithLogger(logging.Named("mscfs")),
		mscfs.WithCacheIncrement(cfg.CacheIncrement),
		mscfs.WithCacheLimit(cfg.CacheLimit),
		mscfs.WithObserver(metrics.Observer{}),
	)
	closer := func() error {
		s.Close()
		return closeSource()
	}
	return s, closer, nil
}
