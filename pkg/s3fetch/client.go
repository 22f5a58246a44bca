// Package s3fetch provides an S3 client and byte-range download helpers
// used to read delimited-text datasets directly out of object storage.
package s3fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/eunmann/chunkcsv/pkg/manifest"
)

// Client provides the S3 operations needed to read a dataset out of object
// storage: fetching its manifest, streaming or ranged-reading its part
// files, and prefetching them to local disk.
type Client struct {
	s3Client *s3.Client
}

// NewClient creates a new S3 client using default AWS configuration.
func NewClient(ctx context.Context) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &Client{
		s3Client: s3.NewFromConfig(cfg),
	}, nil
}

// NewClientWithConfig creates a new S3 client with a custom AWS config.
func NewClientWithConfig(cfg aws.Config) *Client {
	return &Client{
		s3Client: s3.NewFromConfig(cfg),
	}
}

// FetchManifest fetches and parses the JSON manifest describing a
// multi-part dataset.
func (c *Client) FetchManifest(ctx context.Context, bucket, key string) (*manifest.Manifest, error) {
	resp, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get manifest from s3://%s/%s: %w", bucket, key, err)
	}
	defer resp.Body.Close()

	m, err := manifest.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse manifest from s3://%s/%s: %w", bucket, key, err)
	}
	return m, nil
}

// StreamObject returns a reader for the entirety of an S3 object.
func (c *Client) StreamObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	resp, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object s3://%s/%s: %w", bucket, key, err)
	}
	return resp.Body, nil
}

// RangedGet fetches the half-open byte range [start, end) of an S3 object.
// It is the primitive pkg/s3input.Source uses to pull one chunk's bytes
// without downloading the whole object.
func (c *Client) RangedGet(ctx context.Context, bucket, key string, start, end int64) (io.ReadCloser, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", start, end-1)
	resp, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		return nil, fmt.Errorf("ranged get s3://%s/%s %s: %w", bucket, key, rangeHeader, err)
	}
	return resp.Body, nil
}

// ObjectSize returns the size in bytes of an S3 object via HEAD.
func (c *Client) ObjectSize(ctx context.Context, bucket, key string) (int64, error) {
	resp, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("head object s3://%s/%s: %w", bucket, key, err)
	}
	if resp.ContentLength == nil {
		return 0, fmt.Errorf("head object s3://%s/%s: missing content-length", bucket, key)
	}
	return *resp.ContentLength, nil
}

// DownloadFile streams an S3 object to a local file, creating parent
// directories as needed. It is used to prefetch a dataset's part files to
// local disk so they can be memory-mapped by pkg/fileutil.MmapSource.
func (c *Client) DownloadFile(ctx context.Context, bucket, key, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", destPath, err)
	}

	body, err := c.StreamObject(ctx, bucket, key)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return fmt.Errorf("download s3://%s/%s to %s: %w", bucket, key, destPath, err)
	}
	return f.Sync()
}

// DownloadObject downloads an S3 object using the parallel-part download
// manager, returning a streaming reader backed by a local temp file. This
// is faster than StreamObject for large objects since it fetches multiple
// byte ranges concurrently.
func (c *Client) DownloadObject(ctx context.Context, bucket, key string) (io.ReadCloser, *DownloadResult, error) {
	d := NewDownloader(c.s3Client, DefaultDownloaderConfig())
	return d.DownloadToReader(ctx, bucket, key)
}

// ParseS3URI splits an "s3://bucket/key" URI into its bucket and key
// components.
func ParseS3URI(uri string) (bucket, key string, err error) {
	const prefix = "s3://"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", fmt.Errorf("not an s3 uri: %s", uri)
	}
	rest := uri[len(prefix):]
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return "", "", fmt.Errorf("s3 uri missing key: %s", uri)
	}
	bucket = rest[:idx]
	key = rest[idx+1:]
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri missing bucket or key: %s", uri)
	}
	return bucket, key, nil
}

// ParseBucketIdentifier accepts either a bare bucket name or a bucket ARN
// (arn:aws:s3:::bucket-name) and returns the bucket name.
func ParseBucketIdentifier(id string) (string, error) {
	if !strings.HasPrefix(id, "arn:") {
		return id, nil
	}
	return parseBucketARN(id)
}

func parseBucketARN(arn string) (string, error) {
	parts := strings.Split(arn, ":")
	if len(parts) < 6 || parts[0] != "arn" {
		return "", fmt.Errorf("malformed bucket ARN: %s", arn)
	}
	resource := parts[5]
	if resource == "" {
		return "", fmt.Errorf("malformed bucket ARN, empty resource: %s", arn)
	}
	return resource, nil
}
