package s3backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"
)

const workbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ErrObjectNotFound is returned by DownloadFile when no mirror exists yet.
var ErrObjectNotFound = errors.New("object not found")

// Client mirrors ledger workbooks to an S3-compatible bucket
type Client struct {
	s3Client *s3.Client
	config   *Config
}

// NewClient creates a new mirror client
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("ledger S3 mirror is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	log.Infof("[S3Mirror] Initialized S3 client for bucket: %s", cfg.BucketName)
	return &Client{s3Client: s3Client, config: cfg}, nil
}

// UploadFile uploads the local file at localFilePath under the configured prefix
func (c *Client) UploadFile(ctx context.Context, localFilePath string) error {
	file, err := os.Open(localFilePath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", localFilePath, err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file info for %s: %w", localFilePath, err)
	}

	key := c.config.ObjectKey(filepath.Base(localFilePath))
	_, err = c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.config.BucketName),
		Key:           aws.String(key),
		Body:          file,
		ContentType:   aws.String(workbookContentType),
		ContentLength: aws.Int64(fileInfo.Size()),
		Metadata: map[string]string{
			"upload-source": "scribefox-ledger",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Debugf("[S3Mirror] Uploaded %s -> s3://%s/%s (%d bytes)", localFilePath, c.config.BucketName, key, fileInfo.Size())
	return nil
}

// DownloadFile restores the mirrored copy of localFilePath, if any
func (c *Client) DownloadFile(ctx context.Context, localFilePath string) error {
	key := c.config.ObjectKey(filepath.Base(localFilePath))
	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localFilePath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmpPath := localFilePath + ".part"
	localFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", tmpPath, err)
	}
	if _, err := io.Copy(localFile, result.Body); err != nil {
		localFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write local file: %w", err)
	}
	if err := localFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close local file: %w", err)
	}
	if err := os.Rename(tmpPath, localFilePath); err != nil {
		return fmt.Errorf("failed to replace local file: %w", err)
	}
	log.Debugf("[S3Mirror] Restored s3://%s/%s -> %s", c.config.BucketName, key, localFilePath)
	return nil
}
