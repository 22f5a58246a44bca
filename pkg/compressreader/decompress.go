package compressreader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DecompressToFile fully decompresses r (compressed under codec) to destPath,
// creating parent directories as needed. The chunk driver cannot issue
// parallel byte-range reads against a compressed stream — compressed-stream
// offsets do not correspond to decompressed record boundaries — so this is
// the one place the whole object is read sequentially, once, before any
// chunking decision is made; the result is a plain file that
// pkg/fileutil.MmapSource can then serve ranged reads from like any other
// local input.
func DecompressToFile(r io.Reader, codec Codec, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("compressreader: create directory for %s: %w", destPath, err)
	}

	dr, closeDr, err := NewReader(r, codec)
	if err != nil {
		return err
	}
	defer closeDr()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("compressreader: create %s: %w", destPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, dr); err != nil {
		return fmt.Errorf("compressreader: decompress to %s: %w", destPath, err)
	}
	return f.Sync()
}
