package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardcontact/cardfs/internal/config"
	"github.com/cardcontact/cardfs/pkg/models"
)

func TestOpenSession_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"objects":[{"id":"50150000"},{"id":"50150102","size":3}]}`), 0644))

	cfg := &config.Config{Source: config.SourceJSON, SnapshotPath: path, CacheIncrement: 1, CacheLimit: 8}
	s, closer, err := OpenSession(context.Background(), cfg)
	require.NoError(t, err)
	defer closer()

	entries, err := s.ListDirectory(models.FileID{0x50, 0x15})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint32(3), entries[0].Size)
}

func TestNewLister_Errors(t *testing.T) {
	ctx := context.Background()

	_, _, err := NewLister(ctx, &config.Config{Source: config.SourceJSON, SnapshotPath: "/does/not/exist.json"})
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`not json`), 0644))
	_, _, err = NewLister(ctx, &config.Config{Source: config.SourceJSON, SnapshotPath: bad})
	assert.Error(t, err)

	_, _, err = NewLister(ctx, &config.Config{Source: "pcsc"})
	assert.Error(t, err)
}

func TestS3Config(t *testing.T) {
	cfg := &config.Config{S3Endpoint: "http://minio:9000", S3Bucket: "cards", S3Region: "eu-west-1"}
	assert.Equal(t, "http://minio:9000", S3Config(cfg).Endpoint)

	cfg.S3UseSSL = true
	got := S3Config(cfg)
	assert.Equal(t, "https://minio:9000", got.Endpoint)
	assert.Equal(t, "cards", got.Bucket)

	cfg.S3Endpoint = "https://s3.example.com"
	assert.Equal(t, "https://s3.example.com", S3Config(cfg).Endpoint)
}
