// Package s3input implements the S3-backed csvparse.ByteSource: each
// ReadRange call issues a ranged GetObject against a single object,
// letting worker goroutines pull disjoint byte ranges of a dataset
// directly out of object storage without a local download pass.
package s3input

import (
	"context"
	"fmt"
	"io"

	"github.com/eunmann/chunkcsv/pkg/s3fetch"
)

// rangedGetter is the subset of *s3fetch.Client this package depends on.
type rangedGetter interface {
	RangedGet(ctx context.Context, bucket, key string, start, end int64) (io.ReadCloser, error)
	ObjectSize(ctx context.Context, bucket, key string) (int64, error)
}

// Source is a csvparse.ByteSource backed by ranged reads of one S3
// object. Unlike pkg/fileutil.MmapSource, it never materializes the whole
// object locally — every ReadRange issues its own GetObject.
type Source struct {
	client      rangedGetter
	ctx         context.Context
	bucket, key string
	size        int64
}

// Open HEADs the object to discover its size, then returns a Source ready
// for ReadRange calls. ctx is reused for every subsequent ReadRange, since
// csvparse.ByteSource.ReadRange takes none of its own — see the rationale
// on csvparse.ByteSource.
func Open(ctx context.Context, client *s3fetch.Client, bucket, key string) (*Source, error) {
	size, err := client.ObjectSize(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("s3input: size object s3://%s/%s: %w", bucket, key, err)
	}
	return &Source{client: client, ctx: ctx, bucket: bucket, key: key, size: size}, nil
}

// Size implements csvparse.ByteSource.
func (s *Source) Size() int64 {
	return s.size
}

// ReadRange implements csvparse.ByteSource via a ranged GetObject.
func (s *Source) ReadRange(start, end int64) ([]byte, error) {
	if start < 0 || end > s.size || end < start {
		return nil, fmt.Errorf("s3input: range [%d,%d) out of bounds for %d-byte object", start, end, s.size)
	}
	if start == end {
		return nil, nil
	}

	body, err := s.client.RangedGet(s.ctx, s.bucket, s.key, start, end)
	if err != nil {
		return nil, fmt.Errorf("s3input: ranged get [%d,%d): %w", start, end, err)
	}
	defer body.Close()

	buf := make([]byte, end-start)
	if _, err := io.ReadFull(body, buf); err != nil {
		return nil, fmt.Errorf("s3input: read ranged body [%d,%d): %w", start, end, err)
	}
	return buf, nil
}

// Close is a no-op; Source holds no local resources, only a reference to
// the shared *s3fetch.Client.
func (s *Source) Close() error {
	return nil
}
