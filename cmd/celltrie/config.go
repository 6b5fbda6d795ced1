package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/celltrie"
	"github.com/hupe1980/celltrie/blobstore"
	miniostore "github.com/hupe1980/celltrie/blobstore/minio"
	s3store "github.com/hupe1980/celltrie/blobstore/s3"
	"github.com/hupe1980/celltrie/checkpoint"
)

// Config is the YAML configuration of the CLI.
//
//	store:
//	  backend: local
//	  local:
//	    root: /var/lib/celltrie
//	checkpoint:
//	  prefix: fleet/
//	  compression: zstd
//	  rate_limit: 8388608
//	log_level: info
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	LogLevel   string           `yaml:"log_level"`
}

// StoreConfig selects and configures the blob store backend.
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Local   LocalConfig `yaml:"local"`
	MinIO   MinIOConfig `yaml:"minio"`
	S3      S3Config    `yaml:"s3"`
}

// LocalConfig configures blobstore.LocalStore.
type LocalConfig struct {
	Root string `yaml:"root"`
}

// MinIOConfig configures the MinIO backend.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Secure    bool   `yaml:"secure"`
}

// S3Config configures the S3 backend. When PointerTable is set, the current
// checkpoint is tracked in DynamoDB instead of a LATEST blob.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	PointerTable string `yaml:"pointer_table"`
}

// CheckpointConfig configures the checkpoint manager.
type CheckpointConfig struct {
	Prefix      string `yaml:"prefix"`
	Compression string `yaml:"compression"`
	Level       int    `yaml:"level"`
	RateLimit   int    `yaml:"rate_limit"`
	Burst       int    `yaml:"burst"`
}

// LoadConfig reads a YAML config from path. Unknown fields are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses a YAML config and applies defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "local"
	}

	if cfg.Store.Backend == "local" && cfg.Store.Local.Root == "" {
		cfg.Store.Local.Root = "."
	}

	if cfg.Checkpoint.Compression == "" {
		cfg.Checkpoint.Compression = "zstd"
	}

	if cfg.Checkpoint.Level == 0 {
		cfg.Checkpoint.Level = checkpoint.DefaultLevel
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "local", "memory":
	case "minio":
		if c.Store.MinIO.Endpoint == "" || c.Store.MinIO.Bucket == "" {
			return errors.New("config: minio backend needs endpoint and bucket")
		}
	case "s3":
		if c.Store.S3.Bucket == "" {
			return errors.New("config: s3 backend needs bucket")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}

	if _, err := checkpoint.ParseCompression(c.Checkpoint.Compression); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelWarn, nil
	}

	err := l.UnmarshalText([]byte(strings.ToUpper(s)))

	return l, err
}

// Logger returns the logger configured by LogLevel.
func (c *Config) Logger() *celltrie.Logger {
	l, _ := parseLevel(c.LogLevel)
	return celltrie.NewTextLogger(l)
}

// Open returns the configured blob store and the pointer store override, if
// the backend provides one.
func (c *Config) Open(ctx context.Context) (blobstore.BlobStore, checkpoint.PointerStore, error) {
	switch c.Store.Backend {
	case "memory":
		return blobstore.NewMemoryStore(), nil, nil
	case "local":
		return blobstore.NewLocalStore(c.Store.Local.Root), nil, nil
	case "minio":
		mc := c.Store.MinIO

		client, err := minio.New(mc.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(mc.AccessKey, mc.SecretKey, ""),
			Secure: mc.Secure,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("minio client: %w", err)
		}

		return miniostore.NewStore(client, mc.Bucket, mc.Prefix), nil, nil
	case "s3":
		sc := c.Store.S3

		opts := []s3store.Option{s3store.WithPrefix(sc.Prefix)}
		if sc.Region != "" {
			opts = append(opts, s3store.WithRegion(sc.Region))
		}

		if sc.Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(sc.Endpoint))
		}

		store, err := s3store.New(ctx, sc.Bucket, opts...)
		if err != nil {
			return nil, nil, err
		}

		if sc.PointerTable == "" {
			return store, nil, nil
		}

		var loadOpts []func(*config.LoadOptions) error
		if sc.Region != "" {
			loadOpts = append(loadOpts, config.WithRegion(sc.Region))
		}

		awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}

		baseURI := "s3://" + sc.Bucket + "/" + sc.Prefix
		ps := s3store.NewDDBPointerStore(dynamodb.NewFromConfig(awsCfg), sc.PointerTable, baseURI)

		return store, ps, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
}

// Manager builds the checkpoint manager for store.
func (c *Config) Manager(store blobstore.BlobStore, ps checkpoint.PointerStore, logger *celltrie.Logger) *checkpoint.Manager {
	compression, _ := checkpoint.ParseCompression(c.Checkpoint.Compression)

	opts := []checkpoint.Option{
		checkpoint.WithCompression(compression),
		checkpoint.WithCompressionLevel(c.Checkpoint.Level),
		checkpoint.WithRateLimit(c.Checkpoint.RateLimit, c.Checkpoint.Burst),
		checkpoint.WithPrefix(c.Checkpoint.Prefix),
		checkpoint.WithLogger(logger),
	}

	if ps != nil {
		opts = append(opts, checkpoint.WithPointerStore(ps))
	}

	return checkpoint.NewManager(store, opts...)
}
