// Package multisource concatenates several csvparse.ByteSource values
// (local mmap'd files, ranged S3 objects) into a single logical byte
// range, letting pkg/chunkreader chunk and parallelize across a
// manifest-described multi-part dataset exactly as it would a single
// file. It generalizes the teacher's s3fetch.Fetcher, which downloaded
// every part to local disk and concatenated file paths, into a
// concatenation that happens at the byte-range level instead: no part is
// ever downloaded or copied in full, since ReadRange only ever pulls the
// sub-ranges a chunk boundary actually asks for.
package multisource

import (
	"fmt"
	"io"
)

// part records one underlying source's position within the concatenated
// address space.
type part struct {
	src   ByteSource
	start int64
	size  int64
}

// ByteSource is the subset of csvparse.ByteSource this package depends on
// (restated here rather than imported, to keep multisource independent of
// csvparse).
type ByteSource interface {
	Size() int64
	ReadRange(start, end int64) ([]byte, error)
}

// Source is a ByteSource formed by concatenating, in order, the byte
// ranges of every underlying source.
type Source struct {
	parts []part
	total int64
}

// New concatenates sources in order. It is an error to pass zero sources.
func New(sources []ByteSource) (*Source, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("multisource: at least one source required")
	}
	parts := make([]part, len(sources))
	var offset int64
	for i, s := range sources {
		sz := s.Size()
		parts[i] = part{src: s, start: offset, size: sz}
		offset += sz
	}
	return &Source{parts: parts, total: offset}, nil
}

// Size implements csvparse.ByteSource.
func (m *Source) Size() int64 {
	return m.total
}

// ReadRange implements csvparse.ByteSource. A requested range may span
// more than one underlying part; the bytes of each part that fall within
// [start, end) are read and concatenated in order.
func (m *Source) ReadRange(start, end int64) ([]byte, error) {
	if start < 0 || end > m.total || end < start {
		return nil, fmt.Errorf("multisource: range [%d,%d) out of bounds for %d-byte concatenation", start, end, m.total)
	}
	if start == end {
		return nil, nil
	}

	buf := make([]byte, 0, end-start)
	for _, p := range m.parts {
		partEnd := p.start + p.size
		if partEnd <= start || p.start >= end {
			continue
		}
		rs := start - p.start
		if rs < 0 {
			rs = 0
		}
		re := end - p.start
		if re > p.size {
			re = p.size
		}
		b, err := p.src.ReadRange(rs, re)
		if err != nil {
			return nil, fmt.Errorf("multisource: read part at offset %d: %w", p.start, err)
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

// Close closes every underlying source that implements io.Closer,
// returning the first error encountered but still attempting the rest.
func (m *Source) Close() error {
	var firstErr error
	for _, p := range m.parts {
		if c, ok := p.src.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
