package tablewrite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eunmann/chunkcsv/pkg/columnstore"
)

func buildTestTable(t *testing.T) *columnstore.Table {
	t.Helper()
	table := columnstore.New(3)
	table.SetHeader([]string{"id", "name", "storage_class"})
	if err := table.SetNRows(3); err != nil {
		t.Fatalf("SetNRows() error: %v", err)
	}
	rows := [][]string{
		{"1", "alice", "STANDARD"},
		{"2", "bob", "GLACIER"},
		{"3", "carol", "STANDARD"},
	}
	for i, row := range rows {
		if err := table.SetRow(int64(i), row); err != nil {
			t.Fatalf("SetRow(%d) error: %v", i, err)
		}
	}
	return table
}

func TestExportWritesParquetAndManifest(t *testing.T) {
	table := buildTestTable(t)
	dir := filepath.Join(t.TempDir(), "export")

	if err := Export(table, ExportConfig{OutDir: dir}); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "data.parquet")); err != nil {
		t.Errorf("expected data.parquet to exist: %v", err)
	}

	m, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest() error: %v", err)
	}
	if m.NRows != 3 || m.NCols != 3 {
		t.Errorf("manifest NRows/NCols = %d/%d, want 3/3", m.NRows, m.NCols)
	}
	if err := Verify(dir, m); err != nil {
		t.Errorf("Verify() error: %v", err)
	}
}

func TestExportWithDictColumn(t *testing.T) {
	table := buildTestTable(t)
	dir := filepath.Join(t.TempDir(), "export")

	err := Export(table, ExportConfig{OutDir: dir, DictColumns: []string{"storage_class"}})
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	dictDir := filepath.Join(dir, "dict_storage_class")
	if info, err := os.Stat(dictDir); err != nil || !info.IsDir() {
		t.Fatalf("expected dict_storage_class directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dictDir, "mph.bin")); err != nil {
		t.Errorf("expected mph.bin in dict dir: %v", err)
	}
}

func TestExportRejectsMissingOutDir(t *testing.T) {
	table := buildTestTable(t)
	if err := Export(table, ExportConfig{}); err == nil {
		t.Error("Export() should reject an empty OutDir")
	}
}

func TestExportUnknownDictColumnFails(t *testing.T) {
	table := buildTestTable(t)
	dir := filepath.Join(t.TempDir(), "export")
	err := Export(table, ExportConfig{OutDir: dir, DictColumns: []string{"nope"}})
	if err == nil {
		t.Error("Export() should fail for an unknown dictionary column")
	}
}
