// Package dictbuild builds and reads a minimal-perfect-hash dictionary
// mapping distinct column values to small integer IDs, so pkg/tablewrite
// can store low-cardinality columns (storage class, region, content type,
// and the like) as a fixed-width ID array plus one shared value blob
// instead of repeating the string per row.
//
// It generalizes the teacher's format.MPHFBuilder/format.MPHF, built over
// S3-inventory key prefixes, to arbitrary column values.
package dictbuild

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"

	"github.com/relab/bbhash"
)

// Builder accumulates distinct values during ingest and assigns each one a
// stable insertion ID the first time it is seen. Rows reference dictionary
// entries by this ID; Build reorders the values internally for the MPHF but
// the ID a caller already recorded for a row never changes.
type Builder struct {
	values []string
	ids    map[string]uint32
}

// NewBuilder creates an empty dictionary builder.
func NewBuilder() *Builder {
	return &Builder{ids: make(map[string]uint32)}
}

// Add records value if not already present and returns its stable ID.
func (b *Builder) Add(value string) uint32 {
	if id, ok := b.ids[value]; ok {
		return id
	}
	id := uint32(len(b.values))
	b.values = append(b.values, value)
	b.ids[value] = id
	return id
}

// Count returns the number of distinct values recorded so far.
func (b *Builder) Count() int {
	return len(b.values)
}

// Build constructs the MPHF and writes the dictionary's files to outDir:
// mph.bin, mph_fp.u64, mph_pos.u64, values_blob.bin, values_offsets.u64 —
// the set pkg/fileutil.DictFilesValid checks for resumable builds.
func (b *Builder) Build(outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("dictbuild: create %s: %w", outDir, err)
	}

	if len(b.values) == 0 {
		return b.writeEmpty(outDir)
	}

	keys := make([]uint64, len(b.values))
	for i, v := range b.values {
		keys[i] = hashValue(v)
	}

	mph, err := bbhash.New(keys, bbhash.Gamma(2.0))
	if err != nil {
		return fmt.Errorf("dictbuild: build MPHF: %w", err)
	}

	mphPath := filepath.Join(outDir, "mph.bin")
	data, err := mph.MarshalBinary()
	if err != nil {
		return fmt.Errorf("dictbuild: marshal MPHF: %w", err)
	}
	if err := os.WriteFile(mphPath, data, 0o644); err != nil {
		return fmt.Errorf("dictbuild: write %s: %w", mphPath, err)
	}

	// BBHash returns 1-indexed slots; fp/pos are indexed 0..N-1 by slot.
	fingerprints := make([]uint64, len(b.values))
	positions := make([]uint64, len(b.values))
	for id, v := range b.values {
		slot := mph.Find(hashValue(v))
		if slot == 0 {
			return fmt.Errorf("dictbuild: MPHF lookup failed for %q", v)
		}
		fingerprints[slot-1] = fingerprintValue(v)
		positions[slot-1] = uint64(id)
	}

	if err := writeU64Array(filepath.Join(outDir, "mph_fp.u64"), fingerprints); err != nil {
		return fmt.Errorf("dictbuild: write fingerprints: %w", err)
	}
	if err := writeU64Array(filepath.Join(outDir, "mph_pos.u64"), positions); err != nil {
		return fmt.Errorf("dictbuild: write positions: %w", err)
	}

	bw, err := newBlobWriter(filepath.Join(outDir, "values_blob.bin"), filepath.Join(outDir, "values_offsets.u64"))
	if err != nil {
		return fmt.Errorf("dictbuild: create value blob: %w", err)
	}
	for _, v := range b.values {
		if err := bw.WriteString(v); err != nil {
			bw.Close()
			return fmt.Errorf("dictbuild: write value: %w", err)
		}
	}
	return bw.Close()
}

func (b *Builder) writeEmpty(outDir string) error {
	if err := os.WriteFile(filepath.Join(outDir, "mph.bin"), nil, 0o644); err != nil {
		return err
	}
	for _, name := range []string{"mph_fp.u64", "mph_pos.u64"} {
		w, err := newArrayWriter(filepath.Join(outDir, name), 8)
		if err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
	}
	bw, err := newBlobWriter(filepath.Join(outDir, "values_blob.bin"), filepath.Join(outDir, "values_offsets.u64"))
	if err != nil {
		return err
	}
	return bw.Close()
}

func writeU64Array(path string, vals []uint64) error {
	w, err := newArrayWriter(path, 8)
	if err != nil {
		return err
	}
	for _, v := range vals {
		if err := w.WriteU64(v); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// Dict provides read access to a built dictionary: value -> ID lookup for
// encoding new rows against an already-built dictionary, and ID -> value for
// decoding pkg/tablewrite output back to strings.
type Dict struct {
	mph          *bbhash.BBHash2
	fingerprints *arrayReader
	positions    *arrayReader
	values       *blobReader
	count        uint64
}

// Open loads a dictionary previously written by Builder.Build.
func Open(outDir string) (*Dict, error) {
	mphPath := filepath.Join(outDir, "mph.bin")
	info, err := os.Stat(mphPath)
	if err != nil {
		return nil, fmt.Errorf("dictbuild: stat %s: %w", mphPath, err)
	}
	if info.Size() == 0 {
		return &Dict{}, nil
	}

	mphData, err := os.ReadFile(mphPath)
	if err != nil {
		return nil, fmt.Errorf("dictbuild: read %s: %w", mphPath, err)
	}
	mph := &bbhash.BBHash2{}
	if err := mph.UnmarshalBinary(mphData); err != nil {
		return nil, fmt.Errorf("dictbuild: unmarshal MPHF: %w", err)
	}

	fp, err := openArrayReader(filepath.Join(outDir, "mph_fp.u64"))
	if err != nil {
		return nil, fmt.Errorf("dictbuild: open fingerprints: %w", err)
	}
	pos, err := openArrayReader(filepath.Join(outDir, "mph_pos.u64"))
	if err != nil {
		fp.Close()
		return nil, fmt.Errorf("dictbuild: open positions: %w", err)
	}
	values, err := openBlobReader(filepath.Join(outDir, "values_blob.bin"), filepath.Join(outDir, "values_offsets.u64"))
	if err != nil {
		fp.Close()
		pos.Close()
		return nil, fmt.Errorf("dictbuild: open value blob: %w", err)
	}

	return &Dict{mph: mph, fingerprints: fp, positions: pos, values: values, count: values.Count()}, nil
}

// Close releases the dictionary's memory mappings.
func (d *Dict) Close() error {
	var firstErr error
	if d.fingerprints != nil {
		if err := d.fingerprints.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.positions != nil {
		if err := d.positions.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.values != nil {
		if err := d.values.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Count returns the number of distinct values in the dictionary.
func (d *Dict) Count() uint64 { return d.count }

// Lookup returns the stable insertion ID for value, or ok=false if value is
// not in the dictionary.
func (d *Dict) Lookup(value string) (id uint32, ok bool) {
	if d.count == 0 || d.mph == nil {
		return 0, false
	}
	slot := d.mph.Find(hashValue(value))
	if slot == 0 {
		return 0, false
	}
	idx := slot - 1
	if idx >= d.count {
		return 0, false
	}
	storedFP, err := d.fingerprints.GetU64(idx)
	if err != nil || storedFP != fingerprintValue(value) {
		return 0, false
	}
	posVal, err := d.positions.GetU64(idx)
	if err != nil {
		return 0, false
	}
	return uint32(posVal), true
}

// Value returns the string stored under id.
func (d *Dict) Value(id uint32) (string, error) {
	if d.values == nil {
		return "", fmt.Errorf("dictbuild: empty dictionary")
	}
	return d.values.Get(uint64(id))
}

func hashValue(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func fingerprintValue(s string) uint64 {
	h := fnv.New64()
	h.Write([]byte(s))
	return h.Sum64()
}
