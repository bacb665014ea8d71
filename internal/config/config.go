// Package config loads herdbook settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config represents the full application configuration surface.
type Config struct {
	Storage   StorageConfig
	Blob      BlobConfig
	Reminders RemindersConfig
	Timezone  string
	LogLevel  string
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Driver     string
	SQLitePath string
}

// BlobConfig selects where backup documents are written.
type BlobConfig struct {
	Driver string
	FSRoot string
	S3     S3Config
}

// S3Config holds the bucket settings for the s3 blob driver. Endpoint is
// optional and allows S3 compatible services.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// RemindersConfig holds the schedule of the reminder watcher.
type RemindersConfig struct {
	CronSchedule string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		Storage: StorageConfig{
			Driver:     getenvWithDefault("HERDBOOK_STORAGE_DRIVER", "sqlite"),
			SQLitePath: getenvWithDefault("HERDBOOK_SQLITE_PATH", "herdbook.db"),
		},
		Blob: BlobConfig{
			Driver: getenvWithDefault("HERDBOOK_BLOB_DRIVER", "fs"),
			FSRoot: getenvWithDefault("HERDBOOK_BLOB_FS_ROOT", "herdbook-blobs"),
			S3: S3Config{
				Bucket:          os.Getenv("HERDBOOK_BLOB_S3_BUCKET"),
				Region:          getenvWithDefault("HERDBOOK_BLOB_S3_REGION", "us-east-1"),
				Endpoint:        os.Getenv("HERDBOOK_BLOB_S3_ENDPOINT"),
				AccessKeyID:     os.Getenv("HERDBOOK_BLOB_S3_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("HERDBOOK_BLOB_S3_SECRET_ACCESS_KEY"),
				UsePathStyle:    strings.EqualFold(os.Getenv("HERDBOOK_BLOB_S3_PATH_STYLE"), "true"),
			},
		},
		Reminders: RemindersConfig{
			CronSchedule: getenvWithDefault("HERDBOOK_REMINDER_CRON", "0 8 * * *"),
		},
		Timezone: getenvWithDefault("HERDBOOK_TIMEZONE", "Local"),
		LogLevel: getenvWithDefault("HERDBOOK_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return errors.New("HERDBOOK_SQLITE_PATH must be provided")
		}
	case "memory":
	default:
		return fmt.Errorf("HERDBOOK_STORAGE_DRIVER %q is not one of sqlite, memory", c.Storage.Driver)
	}

	switch c.Blob.Driver {
	case "fs":
		if c.Blob.FSRoot == "" {
			return errors.New("HERDBOOK_BLOB_FS_ROOT must be provided")
		}
	case "memory":
	case "s3":
		if c.Blob.S3.Bucket == "" {
			return errors.New("HERDBOOK_BLOB_S3_BUCKET must be provided")
		}
		if c.Blob.S3.Region == "" {
			return errors.New("HERDBOOK_BLOB_S3_REGION must be provided")
		}
	default:
		return fmt.Errorf("HERDBOOK_BLOB_DRIVER %q is not one of fs, memory, s3", c.Blob.Driver)
	}

	if c.Reminders.CronSchedule == "" {
		return errors.New("HERDBOOK_REMINDER_CRON must be provided")
	}
	if _, err := cron.ParseStandard(c.Reminders.CronSchedule); err != nil {
		return fmt.Errorf("HERDBOOK_REMINDER_CRON %q: %w", c.Reminders.CronSchedule, err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured farm time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("HERDBOOK_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
