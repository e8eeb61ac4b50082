package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds MinIO connection configuration
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PresignExpiry time.Duration
}

// Client wraps a MinIO client scoped to a single bucket.
type Client struct {
	client *minio.Client
	config *Config
	logger *slog.Logger
}

// NewClient creates a new MinIO blob client.
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(config.Endpoint, "https://"), "http://")

	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	logger.Info("MinIO client initialized",
		slog.String("endpoint", endpoint),
		slog.String("bucket", config.Bucket),
	)

	return &Client{
		client: mc,
		config: config,
		logger: logger,
	}, nil
}

// EnsureBucket creates the configured bucket when it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %q: %w", c.config.Bucket, err)
	}

	if !exists {
		if err := c.client.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %q: %w", c.config.Bucket, err)
		}
		c.logger.Info("Bucket created", slog.String("bucket", c.config.Bucket))
	}

	return nil
}

// Upload stores an object under the given name.
func (c *Client) Upload(ctx context.Context, name string, reader io.Reader, size int64) error {
	if err := c.EnsureBucket(ctx); err != nil {
		return err
	}

	_, err := c.client.PutObject(ctx, c.config.Bucket, name, reader, size, minio.PutObjectOptions{
		ContentType: contentTypeFor(name),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %q: %w", name, err)
	}

	c.logger.Debug("Object uploaded",
		slog.String("name", name),
		slog.Int64("size", size),
	)

	return nil
}

// Download fetches an object by name. The returned reader must be closed
// by the caller.
func (c *Client) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := c.client.GetObject(ctx, c.config.Bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download %q: %w", name, err)
	}

	// GetObject is lazy; Stat forces the request so missing objects fail here
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to download %q: %w", name, err)
	}

	return obj, nil
}

// PresignedURL returns a time-limited GET URL for an object.
func (c *Client) PresignedURL(ctx context.Context, name string) (string, error) {
	expiry := c.config.PresignExpiry
	if expiry <= 0 {
		expiry = 7 * 24 * time.Hour
	}

	u, err := c.client.PresignedGetObject(ctx, c.config.Bucket, name, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %q: %w", name, err)
	}

	return u.String(), nil
}

// Remove deletes an object by name.
func (c *Client) Remove(ctx context.Context, name string) error {
	if err := c.client.RemoveObject(ctx, c.config.Bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove %q: %w", name, err)
	}

	c.logger.Debug("Object removed", slog.String("name", name))
	return nil
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
