package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/alfredjeanlab/tally/internal/ledger"
	"github.com/alfredjeanlab/tally/internal/model"
)

type Config struct {
	DatabaseURL string // TALLY_DATABASE_URL (required)
	HTTPAddr    string // TALLY_HTTP_ADDR (default ":8080")
	NATSURL     string // TALLY_NATS_URL (optional, empty = no events)
	AuthToken   string // TALLY_AUTH_TOKEN (optional, empty = auth disabled)

	// Partition settings
	PartitionWidth    model.PartitionWidth // TALLY_PARTITION_WIDTH (default "month")
	PartitionMode     ledger.PartitionMode // TALLY_PARTITION_MODE (default "on_demand")
	PartitionAhead    int                  // TALLY_PARTITION_AHEAD (default 1)
	PartitionInterval time.Duration        // TALLY_PARTITION_INTERVAL (default 10m; 0 = maintenance disabled)
	Retention         time.Duration        // TALLY_RETENTION (default 2160h = 90d)

	// Archive settings
	ArchiveS3Bucket   string // TALLY_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string // TALLY_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string // TALLY_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Prefix   string // TALLY_ARCHIVE_S3_PREFIX (default "tally")

	// PII lookup settings
	LookupIndexVisible bool // TALLY_LOOKUP_INDEX_VISIBLE (default false: scan path only)
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:       os.Getenv("TALLY_DATABASE_URL"),
		HTTPAddr:          envOrDefault("TALLY_HTTP_ADDR", ":8080"),
		NATSURL:           os.Getenv("TALLY_NATS_URL"),
		AuthToken:         os.Getenv("TALLY_AUTH_TOKEN"),
		ArchiveS3Bucket:   os.Getenv("TALLY_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("TALLY_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("TALLY_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Prefix:   envOrDefault("TALLY_ARCHIVE_S3_PREFIX", "tally"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("TALLY_DATABASE_URL is required")
	}

	width := model.PartitionWidth(envOrDefault("TALLY_PARTITION_WIDTH", "month"))
	switch width {
	case model.WidthDay, model.WidthWeek, model.WidthMonth:
		c.PartitionWidth = width
	default:
		return nil, fmt.Errorf("TALLY_PARTITION_WIDTH: unknown width %q", width)
	}

	mode := ledger.PartitionMode(envOrDefault("TALLY_PARTITION_MODE", string(ledger.PartitionOnDemand)))
	switch mode {
	case ledger.PartitionOnDemand, ledger.PartitionStrict:
		c.PartitionMode = mode
	default:
		return nil, fmt.Errorf("TALLY_PARTITION_MODE: unknown mode %q", mode)
	}

	ahead, err := strconv.Atoi(envOrDefault("TALLY_PARTITION_AHEAD", "1"))
	if err != nil || ahead < 0 {
		return nil, fmt.Errorf("TALLY_PARTITION_AHEAD: must be a non-negative integer")
	}
	c.PartitionAhead = ahead

	interval, err := time.ParseDuration(envOrDefault("TALLY_PARTITION_INTERVAL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("TALLY_PARTITION_INTERVAL: %w", err)
	}
	c.PartitionInterval = interval

	retention, err := time.ParseDuration(envOrDefault("TALLY_RETENTION", "2160h"))
	if err != nil {
		return nil, fmt.Errorf("TALLY_RETENTION: %w", err)
	}
	c.Retention = retention

	if v := os.Getenv("TALLY_LOOKUP_INDEX_VISIBLE"); v != "" {
		visible, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("TALLY_LOOKUP_INDEX_VISIBLE: %w", err)
		}
		c.LookupIndexVisible = visible
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
