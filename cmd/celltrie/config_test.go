package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := ParseConfig(nil)
		require.NoError(t, err)
		assert.Equal(t, "local", cfg.Store.Backend)
		assert.Equal(t, ".", cfg.Store.Local.Root)
		assert.Equal(t, "zstd", cfg.Checkpoint.Compression)
		assert.Equal(t, 3, cfg.Checkpoint.Level)

		l, err := parseLevel(cfg.LogLevel)
		require.NoError(t, err)
		assert.Equal(t, slog.LevelWarn, l)
	})

	t.Run("Full", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`
store:
  backend: s3
  s3:
    bucket: maps
    prefix: fleet/
    region: eu-central-1
    pointer_table: checkpoints
checkpoint:
  prefix: berlin/
  compression: lz4
  level: 9
  rate_limit: 1048576
  burst: 65536
log_level: debug
`))
		require.NoError(t, err)
		assert.Equal(t, "maps", cfg.Store.S3.Bucket)
		assert.Equal(t, "checkpoints", cfg.Store.S3.PointerTable)
		assert.Equal(t, "lz4", cfg.Checkpoint.Compression)
		assert.Equal(t, 9, cfg.Checkpoint.Level)
		assert.Equal(t, 1048576, cfg.Checkpoint.RateLimit)
		assert.Equal(t, 65536, cfg.Checkpoint.Burst)

		l, err := parseLevel(cfg.LogLevel)
		require.NoError(t, err)
		assert.Equal(t, slog.LevelDebug, l)
	})

	tests := []struct {
		name string
		yaml string
	}{
		{"UnknownField", "store:\n  backend: local\n  colour: blue\n"},
		{"UnknownBackend", "store:\n  backend: floppy\n"},
		{"MinIOWithoutBucket", "store:\n  backend: minio\n  minio:\n    endpoint: localhost:9000\n"},
		{"S3WithoutBucket", "store:\n  backend: s3\n"},
		{"BadCompression", "checkpoint:\n  compression: brotli\n"},
		{"BadLogLevel", "log_level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "celltrie.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: memory\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Backend)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
