package fileutil

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MmapSource is the local-file csvparse.ByteSource: it memory-maps the
// whole file once and hands back slices of that mapping, letting worker
// goroutines read disjoint byte ranges without copying or contending on a
// single *os.File offset.
type MmapSource struct {
	f    *os.File
	data []byte
	size int64
}

// OpenMmapSource memory-maps path for reading.
func OpenMmapSource(path string) (*MmapSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fileutil: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("fileutil: stat %s: %w", path, err)
	}

	size := info.Size()
	if size == 0 {
		return &MmapSource{f: f, size: 0}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("fileutil: mmap %s: %w", path, err)
	}

	return &MmapSource{f: f, data: data, size: size}, nil
}

// Size implements csvparse.ByteSource.
func (s *MmapSource) Size() int64 {
	return s.size
}

// ReadRange implements csvparse.ByteSource. The returned slice aliases the
// mapping directly; callers must not retain it past Close.
func (s *MmapSource) ReadRange(start, end int64) ([]byte, error) {
	if start < 0 || end > s.size || end < start {
		return nil, fmt.Errorf("fileutil: range [%d,%d) out of bounds for %d-byte mapping", start, end, s.size)
	}
	return s.data[start:end], nil
}

// Close unmaps the file and closes its descriptor.
func (s *MmapSource) Close() error {
	var err error
	if s.data != nil {
		err = unix.Munmap(s.data)
	}
	if cerr := s.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
