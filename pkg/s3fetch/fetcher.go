package s3fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/eunmann/chunkcsv/pkg/manifest"
)

// FetchConfig configures a manifest-driven dataset fetch.
type FetchConfig struct {
	// ManifestURI is the S3 URI to the dataset's manifest.json.
	ManifestURI string
	// DownloadDir is the local directory part files are downloaded into.
	DownloadDir string
	// Concurrency is the number of parallel part downloads (default: 4).
	Concurrency int
	// KeepFiles if true, don't delete downloaded files after processing.
	KeepFiles bool
}

// FetchResult contains the results of fetching a dataset's part files.
type FetchResult struct {
	// Manifest is the parsed manifest.
	Manifest *manifest.Manifest
	// LocalFiles are the local paths of the downloaded part files, in
	// manifest order.
	LocalFiles []string
}

// Fetcher downloads the part files of a manifest-described dataset.
type Fetcher struct {
	client *Client
	cfg    FetchConfig
}

// NewFetcher creates a new dataset fetcher.
func NewFetcher(client *Client, cfg FetchConfig) *Fetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Fetcher{
		client: client,
		cfg:    cfg,
	}
}

// Fetch downloads the manifest and all of its part files, returning their
// local paths in manifest order so the caller can feed them to a Driver in
// the order needed to reconstruct the dataset's row order.
func (f *Fetcher) Fetch(ctx context.Context) (*FetchResult, error) {
	bucket, key, err := ParseS3URI(f.cfg.ManifestURI)
	if err != nil {
		return nil, fmt.Errorf("parse manifest URI: %w", err)
	}

	m, err := f.client.FetchManifest(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}

	if err := os.MkdirAll(f.cfg.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	localFiles, err := f.downloadFiles(ctx, bucket, m)
	if err != nil {
		return nil, fmt.Errorf("download part files: %w", err)
	}

	return &FetchResult{
		Manifest:   m,
		LocalFiles: localFiles,
	}, nil
}

// downloadFiles downloads every part file in m concurrently, using the
// same bucket the manifest itself was read from. Part keys are relative to
// that bucket.
func (f *Fetcher) downloadFiles(ctx context.Context, bucket string, m *manifest.Manifest) ([]string, error) {
	localFiles := make([]string, len(m.Files))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)

	for i, file := range m.Files {
		g.Go(func() error {
			localPath := filepath.Join(f.cfg.DownloadDir, sanitizeFilename(file.Key))

			if err := f.client.DownloadFile(ctx, bucket, file.Key, localPath); err != nil {
				return fmt.Errorf("download %s: %w", file.Key, err)
			}

			mu.Lock()
			localFiles[i] = localPath
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("wait for downloads: %w", err)
	}

	return localFiles, nil
}

// Cleanup removes downloaded part files, unless KeepFiles was set.
func (f *Fetcher) Cleanup() error {
	if f.cfg.KeepFiles {
		return nil
	}
	return os.RemoveAll(f.cfg.DownloadDir)
}

// sanitizeFilename converts an S3 key to a safe local filename.
func sanitizeFilename(key string) string {
	return filepath.Base(key)
}
