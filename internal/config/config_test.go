package config

import (
	"testing"
	"time"

	"github.com/alfredjeanlab/tally/internal/ledger"
	"github.com/alfredjeanlab/tally/internal/model"
)

// tallyEnvVars lists all env vars that must be cleared between tests.
var tallyEnvVars = []string{
	"TALLY_DATABASE_URL", "TALLY_HTTP_ADDR", "TALLY_NATS_URL", "TALLY_AUTH_TOKEN",
	"TALLY_PARTITION_WIDTH", "TALLY_PARTITION_MODE", "TALLY_PARTITION_AHEAD",
	"TALLY_PARTITION_INTERVAL", "TALLY_RETENTION",
	"TALLY_ARCHIVE_S3_BUCKET", "TALLY_ARCHIVE_S3_ENDPOINT", "TALLY_ARCHIVE_S3_REGION",
	"TALLY_ARCHIVE_S3_PREFIX", "TALLY_LOOKUP_INDEX_VISIBLE",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range tallyEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name         string
		env          map[string]string
		wantErr      bool
		wantHTTPAddr string
		wantNATSURL  string
	}{
		{
			name:    "MissingDatabaseURL",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:         "DefaultAddresses",
			env:          map[string]string{"TALLY_DATABASE_URL": "postgres://localhost/tally"},
			wantHTTPAddr: ":8080",
		},
		{
			name: "CustomAddresses",
			env: map[string]string{
				"TALLY_DATABASE_URL": "postgres://db:5432/tally",
				"TALLY_HTTP_ADDR":    ":3000",
				"TALLY_NATS_URL":     "nats://localhost:4222",
			},
			wantHTTPAddr: ":3000",
			wantNATSURL:  "nats://localhost:4222",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.DatabaseURL != tc.env["TALLY_DATABASE_URL"] {
				t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, tc.env["TALLY_DATABASE_URL"])
			}
			if cfg.HTTPAddr != tc.wantHTTPAddr {
				t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, tc.wantHTTPAddr)
			}
			if cfg.NATSURL != tc.wantNATSURL {
				t.Errorf("NATSURL = %q, want %q", cfg.NATSURL, tc.wantNATSURL)
			}
		})
	}
}

func TestLoadPartitionDefaults(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("TALLY_DATABASE_URL", "postgres://localhost/tally")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PartitionWidth != model.WidthMonth {
		t.Errorf("PartitionWidth = %q, want month", cfg.PartitionWidth)
	}
	if cfg.PartitionMode != ledger.PartitionOnDemand {
		t.Errorf("PartitionMode = %q, want on_demand", cfg.PartitionMode)
	}
	if cfg.PartitionAhead != 1 {
		t.Errorf("PartitionAhead = %d, want 1", cfg.PartitionAhead)
	}
	if cfg.PartitionInterval != 10*time.Minute {
		t.Errorf("PartitionInterval = %v, want 10m", cfg.PartitionInterval)
	}
	if cfg.Retention != 2160*time.Hour {
		t.Errorf("Retention = %v, want 2160h", cfg.Retention)
	}
	if cfg.ArchiveS3Region != "us-east-1" {
		t.Errorf("ArchiveS3Region = %q, want us-east-1", cfg.ArchiveS3Region)
	}
	if cfg.ArchiveS3Prefix != "tally" {
		t.Errorf("ArchiveS3Prefix = %q, want tally", cfg.ArchiveS3Prefix)
	}
	if cfg.LookupIndexVisible {
		t.Error("LookupIndexVisible should default to false")
	}
}

func TestLoadPartitionCustom(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("TALLY_DATABASE_URL", "postgres://localhost/tally")
	t.Setenv("TALLY_PARTITION_WIDTH", "week")
	t.Setenv("TALLY_PARTITION_MODE", "strict")
	t.Setenv("TALLY_PARTITION_AHEAD", "3")
	t.Setenv("TALLY_PARTITION_INTERVAL", "1h")
	t.Setenv("TALLY_RETENTION", "720h")
	t.Setenv("TALLY_ARCHIVE_S3_BUCKET", "my-bucket")
	t.Setenv("TALLY_ARCHIVE_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("TALLY_ARCHIVE_S3_REGION", "eu-west-1")
	t.Setenv("TALLY_ARCHIVE_S3_PREFIX", "prod/tally")
	t.Setenv("TALLY_LOOKUP_INDEX_VISIBLE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PartitionWidth != model.WidthWeek {
		t.Errorf("PartitionWidth = %q", cfg.PartitionWidth)
	}
	if cfg.PartitionMode != ledger.PartitionStrict {
		t.Errorf("PartitionMode = %q", cfg.PartitionMode)
	}
	if cfg.PartitionAhead != 3 {
		t.Errorf("PartitionAhead = %d", cfg.PartitionAhead)
	}
	if cfg.PartitionInterval != time.Hour {
		t.Errorf("PartitionInterval = %v", cfg.PartitionInterval)
	}
	if cfg.Retention != 720*time.Hour {
		t.Errorf("Retention = %v", cfg.Retention)
	}
	if cfg.ArchiveS3Bucket != "my-bucket" {
		t.Errorf("ArchiveS3Bucket = %q", cfg.ArchiveS3Bucket)
	}
	if cfg.ArchiveS3Endpoint != "http://minio:9000" {
		t.Errorf("ArchiveS3Endpoint = %q", cfg.ArchiveS3Endpoint)
	}
	if cfg.ArchiveS3Region != "eu-west-1" {
		t.Errorf("ArchiveS3Region = %q", cfg.ArchiveS3Region)
	}
	if cfg.ArchiveS3Prefix != "prod/tally" {
		t.Errorf("ArchiveS3Prefix = %q", cfg.ArchiveS3Prefix)
	}
	if !cfg.LookupIndexVisible {
		t.Error("LookupIndexVisible = false, want true")
	}
}

func TestLoadInvalidValues(t *testing.T) {
	for _, tc := range []struct {
		name string
		key  string
		val  string
	}{
		{"BadWidth", "TALLY_PARTITION_WIDTH", "fortnight"},
		{"BadMode", "TALLY_PARTITION_MODE", "lazy"},
		{"BadAhead", "TALLY_PARTITION_AHEAD", "-1"},
		{"BadInterval", "TALLY_PARTITION_INTERVAL", "not-a-duration"},
		{"BadRetention", "TALLY_RETENTION", "ninety-days"},
		{"BadVisible", "TALLY_LOOKUP_INDEX_VISIBLE", "maybe"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			t.Setenv("TALLY_DATABASE_URL", "postgres://localhost/tally")
			t.Setenv(tc.key, tc.val)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.val)
			}
		})
	}
}

func TestLoadMaintenanceDisabled(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("TALLY_DATABASE_URL", "postgres://localhost/tally")
	t.Setenv("TALLY_PARTITION_INTERVAL", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PartitionInterval != 0 {
		t.Errorf("PartitionInterval = %v, want 0 (disabled)", cfg.PartitionInterval)
	}
}

func TestEnvOrDefault(t *testing.T) {
	for _, tc := range []struct {
		name     string
		key      string
		envVal   string
		fallback string
		want     string
	}{
		{"EmptyUsesDefault", "TEST_ENVDEFAULT_EMPTY", "", "default-val", "default-val"},
		{"SetUsesEnv", "TEST_ENVDEFAULT_SET", "custom", "default-val", "custom"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envVal)
			got := envOrDefault(tc.key, tc.fallback)
			if got != tc.want {
				t.Errorf("envOrDefault(%q, %q) = %q, want %q", tc.key, tc.fallback, got, tc.want)
			}
		})
	}
}
