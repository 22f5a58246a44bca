package tablewrite

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ManifestVersion is the current tablewrite manifest format version.
const ManifestVersion = 1

// Manifest describes the contents of an export directory, adapted from the
// teacher's format.Manifest (node-count/max-depth fields replaced with
// row/column counts for a tabular export).
type Manifest struct {
	Version   int                 `json:"version"`
	CreatedAt time.Time           `json:"created_at"`
	NRows     int64               `json:"nrows"`
	NCols     int                 `json:"ncols"`
	Columns   []string            `json:"columns"`
	Files     map[string]FileInfo `json:"files"`
}

// FileInfo describes a single file in the export, for resumability and
// tamper detection on read-back.
type FileInfo struct {
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// WriteManifest checksums every file in names (relative to dir) and writes
// manifest.json, fsyncing the manifest file. It does not sync dir itself;
// Export does that afterwards with SyncDir.
func WriteManifest(dir string, nrows int64, ncols int, columns []string, names []string) error {
	m := Manifest{
		Version:   ManifestVersion,
		CreatedAt: time.Now().UTC(),
		NRows:     nrows,
		NCols:     ncols,
		Columns:   columns,
		Files:     make(map[string]FileInfo, len(names)),
	}

	for _, name := range names {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("tablewrite: stat %s: %w", name, err)
		}
		if info.IsDir() {
			// Dictionary subdirectories (one per pkg/dictbuild column) are
			// recorded with their own internal files; a single checksum over
			// a directory isn't meaningful, so only the entry's presence is
			// recorded here.
			m.Files[name] = FileInfo{Size: 0, Checksum: ""}
			continue
		}
		checksum, err := checksumFile(path)
		if err != nil {
			return fmt.Errorf("tablewrite: checksum %s: %w", name, err)
		}
		m.Files[name] = FileInfo{Size: info.Size(), Checksum: checksum}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("tablewrite: marshal manifest: %w", err)
	}

	manifestPath := filepath.Join(dir, "manifest.json")
	f, err := os.Create(manifestPath)
	if err != nil {
		return fmt.Errorf("tablewrite: create manifest: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("tablewrite: write manifest: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("tablewrite: sync manifest: %w", err)
	}
	return f.Close()
}

// ReadManifest reads an export directory's manifest.json.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("tablewrite: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("tablewrite: unmarshal manifest: %w", err)
	}
	return &m, nil
}

// Verify checks that every file the manifest describes matches its
// recorded size and checksum.
func Verify(dir string, m *Manifest) error {
	for name, fi := range m.Files {
		path := filepath.Join(dir, name)
		stat, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("tablewrite: file %s: %w", name, err)
		}
		if stat.IsDir() {
			continue
		}
		if stat.Size() != fi.Size {
			return fmt.Errorf("tablewrite: file %s: size mismatch (got %d, want %d)", name, stat.Size(), fi.Size)
		}
		checksum, err := checksumFile(path)
		if err != nil {
			return fmt.Errorf("tablewrite: checksum %s: %w", name, err)
		}
		if checksum != fi.Checksum {
			return fmt.Errorf("tablewrite: file %s: checksum mismatch", name)
		}
	}
	return nil
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SyncDir fsyncs a directory entry, used after an atomic rename to ensure
// the rename itself is durable.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
