package tablewrite

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/eunmann/chunkcsv/pkg/columnstore"
	"github.com/eunmann/chunkcsv/pkg/dictbuild"
	"github.com/eunmann/chunkcsv/pkg/fileutil"
	"github.com/eunmann/chunkcsv/pkg/logging"
)

// ExportConfig controls Export's output.
type ExportConfig struct {
	// OutDir is the final export directory; any existing directory at this
	// path is replaced atomically on success.
	OutDir string
	// RowGroupSize is the Parquet row group size (0 lets the writer choose).
	RowGroupSize int
	// DictColumns names columns to additionally dictionary-encode via
	// pkg/dictbuild, one subdirectory per column (e.g. "dict_storage_class/").
	DictColumns []string
	// FileWriteConcurrency bounds the worker pool writing independent
	// output artifacts in parallel (default 4).
	FileWriteConcurrency int
}

// writeTask is one independently-buildable output artifact, adapted from
// the teacher's indexbuild.writeTask.
type writeTask struct {
	name string
	fn   func(tmpDir string) (int64, error)
}

// Export writes table's rows and (optionally) per-column value
// dictionaries to cfg.OutDir, building independent artifacts concurrently,
// then commits a checksummed manifest and atomically renames the temp
// directory into place.
func Export(table *columnstore.Table, cfg ExportConfig) error {
	if cfg.OutDir == "" {
		return fmt.Errorf("tablewrite: output directory required")
	}
	if cfg.FileWriteConcurrency <= 0 {
		cfg.FileWriteConcurrency = 4
	}

	log := logging.WithPhase("table_export")
	start := time.Now()

	tmpDir := cfg.OutDir + ".tmp"
	if err := os.RemoveAll(tmpDir); err != nil {
		return fmt.Errorf("tablewrite: clear temp dir: %w", err)
	}
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return fmt.Errorf("tablewrite: create temp dir: %w", err)
	}
	renamed := false
	defer func() {
		if !renamed {
			os.RemoveAll(tmpDir)
		}
	}()

	tasks := []writeTask{
		{"data.parquet", func(dir string) (int64, error) {
			return WriteParquet(filepath.Join(dir, "data.parquet"), table, cfg.RowGroupSize)
		}},
	}
	for _, col := range cfg.DictColumns {
		col := col
		name := fmt.Sprintf("dict_%s", col)
		tasks = append(tasks, writeTask{
			name: name,
			fn: func(dir string) (int64, error) {
				return buildColumnDict(table, col, filepath.Join(dir, name))
			},
		})
	}

	names, err := runTasksParallel(tmpDir, tasks, cfg.FileWriteConcurrency, log)
	if err != nil {
		return err
	}

	if err := WriteManifest(tmpDir, table.NRows(), table.NCols(), table.Header(), names); err != nil {
		return fmt.Errorf("tablewrite: write manifest: %w", err)
	}
	if err := SyncDir(tmpDir); err != nil {
		return fmt.Errorf("tablewrite: sync temp dir: %w", err)
	}

	if err := os.RemoveAll(cfg.OutDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("tablewrite: remove existing output dir: %w", err)
	}
	if err := os.Rename(tmpDir, cfg.OutDir); err != nil {
		return fmt.Errorf("tablewrite: rename output dir: %w", err)
	}
	renamed = true
	_ = SyncDir(filepath.Dir(cfg.OutDir))

	logging.PhaseComplete(log, "table_export", time.Since(start)).
		Str("output_dir", cfg.OutDir).
		Log("table export complete")

	return nil
}

// runTasksParallel runs tasks over a bounded worker pool, adapted from the
// teacher's indexbuild.writeIndexFilesParallel. It returns every task's
// output file name (relative to tmpDir) for inclusion in the manifest; a
// dictionary task produces a directory rather than a single file, which
// WriteManifest records without a size or checksum.
func runTasksParallel(tmpDir string, tasks []writeTask, concurrency int, log zerolog.Logger) ([]string, error) {
	taskCh := make(chan writeTask, len(tasks))
	for _, t := range tasks {
		taskCh <- t
	}
	close(taskCh)

	var (
		mu       sync.Mutex
		firstErr error
		names    []string
	)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				taskStart := time.Now()
				bytesWritten, err := task.fn(tmpDir)

				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("%s: %w", task.name, err)
					}
					mu.Unlock()
					continue
				}
				if fileutil.Exists(filepath.Join(tmpDir, task.name)) {
					names = append(names, task.name)
				}
				mu.Unlock()

				logging.FileCreated(log, "table_export", time.Since(taskStart)).
					Str("file", task.name).
					Bytes("bytes", bytesWritten).
					Throughput(bytesWritten).
					Log("export artifact written")
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return names, nil
}

func buildColumnDict(table *columnstore.Table, column, dir string) (int64, error) {
	idx := -1
	for i, name := range table.Header() {
		if name == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, fmt.Errorf("tablewrite: unknown dictionary column %q", column)
	}

	values, err := table.Column(idx)
	if err != nil {
		return 0, err
	}

	b := dictbuild.NewBuilder()
	for _, v := range values {
		b.Add(v)
	}
	if err := b.Build(dir); err != nil {
		return 0, err
	}
	return int64(b.Count()), nil
}
