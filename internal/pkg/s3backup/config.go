package s3backup

import (
	"errors"
	"path"
	"strings"

	"github.com/ManuelReschke/Scribefox/internal/pkg/env"
)

// Config holds the S3 mirror configuration of the workbook ledger
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Prefix          string
	Enabled         bool
}

// LoadConfig loads the mirror configuration from LEDGER_S3_* variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("LEDGER_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("LEDGER_S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("LEDGER_S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("LEDGER_S3_BUCKET", ""),
		EndpointURL:     env.GetEnv("LEDGER_S3_ENDPOINT_URL", ""),
		Prefix:          env.GetEnv("LEDGER_S3_PREFIX", "ledger"),
		Enabled:         env.GetBool("LEDGER_S3_ENABLED", false),
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("LEDGER_S3_ACCESS_KEY_ID is required when the ledger mirror is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("LEDGER_S3_SECRET_ACCESS_KEY is required when the ledger mirror is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("LEDGER_S3_BUCKET is required when the ledger mirror is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if the mirror is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// ObjectKey returns the key a local workbook is mirrored to.
func (c *Config) ObjectKey(fileName string) string {
	prefix := strings.Trim(c.Prefix, "/")
	if prefix == "" {
		return fileName
	}
	return path.Join(prefix, fileName)
}
