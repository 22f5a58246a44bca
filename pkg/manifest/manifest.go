// Package manifest parses the small JSON document that describes a dataset
// split across multiple delimited-text part files, such as a multi-part
// export produced by a data warehouse or storage-inventory job.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Manifest lists the part files making up one logical dataset, in the
// order they must be read to reconstruct the original row order.
type Manifest struct {
	Files   []PartFile `json:"files"`
	Columns []string   `json:"columns,omitempty"`
}

// PartFile identifies one part and its byte size, used to size the chunk
// planner for that part without a prior stat/HEAD call.
type PartFile struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// Parse decodes and validates a manifest document.
func Parse(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("validate manifest: %w", err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if len(m.Files) == 0 {
		return errors.New("manifest has no files")
	}
	for i, f := range m.Files {
		if f.Key == "" {
			return fmt.Errorf("file %d: missing key", i)
		}
		if f.Size < 0 {
			return fmt.Errorf("file %d (%s): negative size %d", i, f.Key, f.Size)
		}
	}
	return nil
}

// TotalSize returns the sum of every part's declared size.
func (m *Manifest) TotalSize() int64 {
	var total int64
	for _, f := range m.Files {
		total += f.Size
	}
	return total
}
