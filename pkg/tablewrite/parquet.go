// Package tablewrite exports a finished columnstore.Table to durable
// storage: a Parquet file plus a checksummed manifest, written via the same
// tmp-then-rename discipline as the rest of the module
// (pkg/fileutil.WriteTmpThenMove), with independent output artifacts built
// concurrently by a worker pool adapted from the teacher's
// pkg/indexbuild.writeIndexFilesParallel.
package tablewrite

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/eunmann/chunkcsv/pkg/columnstore"
)

// schemaFor builds a flat schema with one optional string leaf per column,
// matching columnstore.Table's untyped, string-only storage model.
func schemaFor(columns []string) *parquet.Schema {
	group := make(parquet.Group, len(columns))
	for _, name := range columns {
		group[name] = parquet.Optional(parquet.String())
	}
	return parquet.NewSchema("row", group)
}

// WriteParquet writes table to path as a single Parquet file, flushing a
// new row group every rowGroupSize rows (0 disables manual flushing and
// lets the writer pick its own row group boundaries).
func WriteParquet(path string, table *columnstore.Table, rowGroupSize int) (int64, error) {
	header := table.Header()
	if len(header) != table.NCols() {
		return 0, fmt.Errorf("tablewrite: table has %d columns but %d header names", table.NCols(), len(header))
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("tablewrite: create %s: %w", path, err)
	}
	defer f.Close()

	schema := schemaFor(header)
	writer := parquet.NewWriter(f, schema)

	nrows := table.NRows()
	row := make(parquet.Row, len(header))
	for r := int64(0); r < nrows; r++ {
		for c := range header {
			val, err := table.Get(r, c)
			if err != nil {
				writer.Close()
				return 0, fmt.Errorf("tablewrite: read row %d col %d: %w", r, c, err)
			}
			row[c] = parquet.ValueOf(val).Level(0, 0, c)
		}
		if _, err := writer.WriteRows([]parquet.Row{row}); err != nil {
			writer.Close()
			return 0, fmt.Errorf("tablewrite: write row %d: %w", r, err)
		}
		if rowGroupSize > 0 && (r+1)%int64(rowGroupSize) == 0 {
			if err := writer.Flush(); err != nil {
				writer.Close()
				return 0, fmt.Errorf("tablewrite: flush row group at row %d: %w", r, err)
			}
		}
	}

	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("tablewrite: close parquet writer: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("tablewrite: sync %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("tablewrite: stat %s: %w", path, err)
	}
	return info.Size(), nil
}
