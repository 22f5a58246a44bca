// Package cli implements the command-line interface for chunkcsv.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eunmann/chunkcsv/internal/logctx"
	"github.com/eunmann/chunkcsv/pkg/chunkreader"
	"github.com/eunmann/chunkcsv/pkg/columnstore"
	"github.com/eunmann/chunkcsv/pkg/compressreader"
	"github.com/eunmann/chunkcsv/pkg/csvparse"
	"github.com/eunmann/chunkcsv/pkg/fileutil"
	"github.com/eunmann/chunkcsv/pkg/logging"
	"github.com/eunmann/chunkcsv/pkg/manifest"
	"github.com/eunmann/chunkcsv/pkg/membudget"
	"github.com/eunmann/chunkcsv/pkg/memdiag"
	"github.com/eunmann/chunkcsv/pkg/multisource"
	"github.com/eunmann/chunkcsv/pkg/s3fetch"
	"github.com/eunmann/chunkcsv/pkg/s3input"
	"github.com/eunmann/chunkcsv/pkg/tablewrite"
)

// memBudgetEnvVar is the environment variable consulted by
// determineMemoryBudget when the --mem-budget flag is unset.
const memBudgetEnvVar = "CHUNKCSV_MEM_BUDGET"

// Run executes the CLI with the given arguments.
func Run(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: chunkcsv <command> [options]\ncommands: read")
	}

	switch args[0] {
	case "read":
		return runRead(args[1:])
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// dictColumnFlags collects repeated --dict-column flags.
type dictColumnFlags []string

func (d *dictColumnFlags) String() string { return strings.Join(*d, ",") }

func (d *dictColumnFlags) Set(v string) error {
	*d = append(*d, v)
	return nil
}

func runRead(args []string) error {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	threads := fs.Int("threads", runtime.NumCPU(), "number of parallel worker goroutines")
	maxRows := fs.Int64("max-rows", math.MaxInt64, "maximum number of rows to read")
	progress := fs.Bool("progress", false, "report progress while reading")
	memBudgetFlag := fs.String("mem-budget", "", "memory budget (e.g. \"4GiB\"); defaults to 50% of system RAM")
	delimiter := fs.String("delimiter", ",", "field delimiter, a single byte")
	quote := fs.String("quote", "\"", "quote character, a single byte")
	noHeader := fs.Bool("no-header", false, "treat the first record as data, not column names")
	outDir := fs.String("out", "", "export directory for a Parquet + manifest copy of the result")
	prefetchDir := fs.String("prefetch-dir", "", "for s3:// manifest inputs, download part files here first instead of ranged-reading them directly")
	rowGroupSize := fs.Int("row-group-size", 0, "Parquet row group size (0 lets the writer choose)")
	debug := fs.Bool("debug", false, "enable debug logging")
	humanLog := fs.Bool("human-log", false, "use human-readable console logging instead of JSON")
	var dictColumns dictColumnFlags
	fs.Var(&dictColumns, "dict-column", "column name to additionally dictionary-encode on export (repeatable)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	positional := fs.Args()
	if len(positional) == 0 {
		return errors.New("read: an input path or s3:// URI is required")
	}
	input := positional[0]

	if *threads <= 0 {
		return errors.New("read: --threads must be positive")
	}
	if *maxRows <= 0 {
		return errors.New("read: --max-rows must be positive")
	}
	if len(*delimiter) != 1 {
		return errors.New("read: --delimiter must be exactly one byte")
	}
	if len(*quote) != 1 {
		return errors.New("read: --quote must be exactly one byte")
	}
	if len(dictColumns) > 0 && *outDir == "" {
		return errors.New("read: --dict-column requires --out")
	}

	budget, err := determineMemoryBudget(*memBudgetFlag)
	if err != nil {
		return err
	}

	logging.Init(*debug, *humanLog)

	tracker := memdiag.NewTracker(memdiag.DefaultConfig())
	tracker.Start()
	defer tracker.Stop()
	tracker.SetPhase("read")

	ctx := logctx.WithLogger(context.Background(), logging.WithPhase("read"))
	ctx = logctx.WithStr(ctx, "input", input)

	dialect := csvparse.DefaultDialect()
	dialect.Delimiter = (*delimiter)[0]
	dialect.Quote = (*quote)[0]
	dialect.HasHeader = !*noHeader

	table, err := readInput(ctx, input, dialect, readOptions{
		threads:     *threads,
		maxRows:     *maxRows,
		progress:    *progress,
		budget:      budget,
		prefetchDir: *prefetchDir,
	})
	if err != nil {
		return err
	}
	tracker.LogWithBudget("read_complete", budget.InUse(), budget.Total())

	logger := logctx.FromContext(ctx)
	logger.Info().
		Int64("rows", table.NRows()).
		Int("columns", table.NCols()).
		Msg("read complete")

	if *outDir != "" {
		tracker.SetPhase("export")
		return tablewrite.Export(table, tablewrite.ExportConfig{
			OutDir:       *outDir,
			RowGroupSize: *rowGroupSize,
			DictColumns:  dictColumns,
		})
	}
	return nil
}

type readOptions struct {
	threads     int
	maxRows     int64
	progress    bool
	budget      *membudget.Budget
	prefetchDir string
}

// readInput opens input (a local path, optionally compressed; an
// "s3://bucket/key" URI; or a local/S3 manifest.json naming several part
// files) and drives a single chunkreader.Driver run over it, returning the
// fully populated table.
func readInput(ctx context.Context, input string, dialect csvparse.Dialect, opts readOptions) (*columnstore.Table, error) {
	src, cleanup, threads, err := openInput(ctx, input, opts.threads, opts.prefetchDir)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	ncols, header, meanLineLen, err := sniffShape(src, dialect)
	if err != nil {
		return nil, err
	}

	table := columnstore.New(ncols)
	table.SetHeader(header)

	maxNRows := opts.maxRows
	if budgetRows := estimateMaxRowsFromBudget(opts.budget, ncols, meanLineLen); budgetRows < maxNRows {
		maxNRows = budgetRows
	}

	initial := estimateInitialRows(src.Size(), meanLineLen, maxNRows)
	if err := table.SetNRows(initial); err != nil {
		return nil, fmt.Errorf("read: allocate initial rows: %w", err)
	}

	env := &runEnv{
		sof:            0,
		eof:            src.Size(),
		nthreads:       threads,
		maxNRows:       maxNRows,
		reportProgress: opts.progress,
		log:            logctx.FromContext(ctx),
	}

	driver, err := chunkreader.NewDriver(env, table, func() chunkreader.ParseContext {
		return csvparse.NewContext(src, dialect)
	}, meanLineLen, nil)
	if err != nil {
		return nil, fmt.Errorf("read: create driver: %w", err)
	}

	if err := driver.ReadAll(ctx); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return table, nil
}

// sniffShape peeks at the start of src to learn the column count, header
// names (when the dialect declares one), and a rough mean record length
// for the chunk planner, all without requiring the column count be known
// up front the way columnstore.New otherwise demands. It always parses
// with HasHeader forced true, purely to learn the field count of the
// first record structurally; the real dialect's HasHeader then decides
// whether that first record is data or column names.
func sniffShape(src csvparse.ByteSource, dialect csvparse.Dialect) (ncols int, header []string, meanLineLen float64, err error) {
	size := src.Size()
	if size == 0 {
		return 0, nil, 1, fmt.Errorf("read: input is empty")
	}

	sniffDialect := dialect
	sniffDialect.HasHeader = true
	ctx := csvparse.NewContext(src, sniffDialect)

	sniffEnd := size
	const sniffWindow = 1 << 20
	if sniffEnd > sniffWindow {
		sniffEnd = sniffWindow
	}

	actual, err := ctx.ReadChunk(chunkreader.ChunkCoordinates{Start: 0, End: sniffEnd, TrueStart: true, TrueEnd: false})
	if err != nil {
		return 0, nil, 1, fmt.Errorf("read: inspect input shape: %w", err)
	}

	fields := ctx.Header()
	if len(fields) == 0 {
		return 0, nil, 1, fmt.Errorf("read: could not determine column count from input")
	}

	rowCount := ctx.UsedRows() + 1 // +1 for the sniffed header-shaped row itself
	mean := float64(actual.Len()) / float64(rowCount)
	if mean < 1 {
		mean = 1
	}

	if dialect.HasHeader {
		return len(fields), fields, mean, nil
	}

	synthetic := make([]string, len(fields))
	for i := range synthetic {
		synthetic[i] = fmt.Sprintf("col%d", i)
	}
	return len(fields), synthetic, mean, nil
}

// estimateInitialRows picks a starting allocation for the column store:
// enough for the whole input at the observed mean line length, clamped to
// maxNRows, with a small floor so tiny inputs don't round to zero.
func estimateInitialRows(inputSize int64, meanLineLen float64, maxNRows int64) int64 {
	est := int64(float64(inputSize)/meanLineLen) + 16
	if est > maxNRows {
		est = maxNRows
	}
	if est < 0 {
		est = 0
	}
	return est
}

// estimateMaxRowsFromBudget converts the column store's share of the
// memory budget into a row cap, assuming each field averages meanLineLen
// bytes of string storage per column; this is deliberately conservative
// since Go string headers and per-row slice overhead are not modeled.
func estimateMaxRowsFromBudget(budget *membudget.Budget, ncols int, meanLineLen float64) int64 {
	if budget == nil || ncols == 0 {
		return math.MaxInt64
	}
	bytesPerRow := meanLineLen * float64(ncols)
	if bytesPerRow < 1 {
		bytesPerRow = 1
	}
	rows := float64(budget.ColumnStoreBudget()) / bytesPerRow
	if rows <= 0 {
		return math.MaxInt64
	}
	return int64(rows)
}

// openInput resolves input to a csvparse.ByteSource. It returns the
// effective thread count to use: compressed local inputs are forced to
// one thread, since a compressed stream's byte offsets carry no relation
// to decompressed record boundaries until the whole object has been
// decompressed up front.
func openInput(ctx context.Context, input string, requestedThreads int, prefetchDir string) (csvparse.ByteSource, func(), int, error) {
	switch {
	case strings.HasPrefix(input, "s3://"):
		bucket, key, err := s3fetch.ParseS3URI(input)
		if err != nil {
			return nil, nil, 0, err
		}
		client, err := s3fetch.NewClient(ctx)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("read: create s3 client: %w", err)
		}
		if strings.HasSuffix(key, ".json") {
			if prefetchDir != "" {
				return openPrefetchedS3Manifest(ctx, client, input, prefetchDir, requestedThreads)
			}
			return openS3Manifest(ctx, client, bucket, key, requestedThreads)
		}
		src, err := s3input.Open(ctx, client, bucket, key)
		if err != nil {
			return nil, nil, 0, err
		}
		return src, func() { src.Close() }, requestedThreads, nil

	case strings.HasSuffix(input, ".json"):
		f, err := os.Open(input)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("read: open manifest %s: %w", input, err)
		}
		defer f.Close()
		m, err := manifest.Parse(f)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("read: parse manifest %s: %w", input, err)
		}
		return openLocalManifestParts(filepath.Dir(input), m, requestedThreads)

	default:
		codec := compressreader.DetectCodec(input)
		if codec == compressreader.None {
			src, err := fileutil.OpenMmapSource(input)
			if err != nil {
				return nil, nil, 0, fmt.Errorf("read: open %s: %w", input, err)
			}
			return src, func() { src.Close() }, requestedThreads, nil
		}

		decompressed, err := decompressToTemp(input, codec)
		if err != nil {
			return nil, nil, 0, err
		}
		src, err := fileutil.OpenMmapSource(decompressed)
		if err != nil {
			os.Remove(decompressed)
			return nil, nil, 0, fmt.Errorf("read: open decompressed %s: %w", decompressed, err)
		}
		return src, func() { src.Close(); os.Remove(decompressed) }, 1, nil
	}
}

func decompressToTemp(input string, codec compressreader.Codec) (string, error) {
	f, err := os.Open(input)
	if err != nil {
		return "", fmt.Errorf("read: open %s: %w", input, err)
	}
	defer f.Close()

	destPath := filepath.Join(os.TempDir(), fmt.Sprintf("chunkcsv-%s.decompressed", filepath.Base(input)))
	if err := compressreader.DecompressToFile(f, codec, destPath); err != nil {
		return "", fmt.Errorf("read: decompress %s: %w", input, err)
	}
	return destPath, nil
}

func openLocalManifestParts(baseDir string, m *manifest.Manifest, requestedThreads int) (csvparse.ByteSource, func(), int, error) {
	sources := make([]multisource.ByteSource, 0, len(m.Files))
	var opened []*fileutil.MmapSource
	for _, part := range m.Files {
		path := filepath.Join(baseDir, part.Key)
		src, err := fileutil.OpenMmapSource(path)
		if err != nil {
			for _, o := range opened {
				o.Close()
			}
			return nil, nil, 0, fmt.Errorf("read: open manifest part %s: %w", path, err)
		}
		opened = append(opened, src)
		sources = append(sources, src)
	}
	combined, err := multisource.New(sources)
	if err != nil {
		for _, o := range opened {
			o.Close()
		}
		return nil, nil, 0, err
	}
	return combined, func() { combined.Close() }, requestedThreads, nil
}

// openPrefetchedS3Manifest downloads every part file of an S3 manifest to
// prefetchDir up front via s3fetch.Fetcher, then opens the local copies the
// same way a local manifest.json would be opened. Unlike openS3Manifest,
// which ranged-reads parts directly from S3 as chunks ask for them, this
// path trades network round-trips during parsing for one upfront batch
// download, useful when a dataset will be scanned more than once or the
// bucket doesn't serve ranged GETs efficiently.
func openPrefetchedS3Manifest(ctx context.Context, client *s3fetch.Client, manifestURI, prefetchDir string, requestedThreads int) (csvparse.ByteSource, func(), int, error) {
	fetcher := s3fetch.NewFetcher(client, s3fetch.FetchConfig{
		ManifestURI: manifestURI,
		DownloadDir: prefetchDir,
	})

	result, err := fetcher.Fetch(ctx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("read: prefetch %s: %w", manifestURI, err)
	}

	sources := make([]multisource.ByteSource, 0, len(result.LocalFiles))
	var opened []*fileutil.MmapSource
	for _, path := range result.LocalFiles {
		src, err := fileutil.OpenMmapSource(path)
		if err != nil {
			for _, o := range opened {
				o.Close()
			}
			fetcher.Cleanup()
			return nil, nil, 0, fmt.Errorf("read: open prefetched part %s: %w", path, err)
		}
		opened = append(opened, src)
		sources = append(sources, src)
	}
	combined, err := multisource.New(sources)
	if err != nil {
		for _, o := range opened {
			o.Close()
		}
		fetcher.Cleanup()
		return nil, nil, 0, err
	}
	cleanup := func() {
		combined.Close()
		fetcher.Cleanup()
	}
	return combined, cleanup, requestedThreads, nil
}

func openS3Manifest(ctx context.Context, client *s3fetch.Client, bucket, key string, requestedThreads int) (csvparse.ByteSource, func(), int, error) {
	m, err := client.FetchManifest(ctx, bucket, key)
	if err != nil {
		return nil, nil, 0, err
	}

	sources := make([]multisource.ByteSource, 0, len(m.Files))
	var opened []*s3input.Source
	for _, part := range m.Files {
		src, err := s3input.Open(ctx, client, bucket, part.Key)
		if err != nil {
			for _, o := range opened {
				o.Close()
			}
			return nil, nil, 0, fmt.Errorf("read: open manifest part s3://%s/%s: %w", bucket, part.Key, err)
		}
		opened = append(opened, src)
		sources = append(sources, src)
	}
	combined, err := multisource.New(sources)
	if err != nil {
		for _, o := range opened {
			o.Close()
		}
		return nil, nil, 0, err
	}
	return combined, func() { combined.Close() }, requestedThreads, nil
}

// runEnv implements chunkreader.Env for one read command invocation.
type runEnv struct {
	sof, eof       int64
	nthreads       int
	maxNRows       int64
	reportProgress bool
	log            zerolog.Logger
}

func (e *runEnv) SOF() int64           { return e.sof }
func (e *runEnv) EOF() int64           { return e.eof }
func (e *runEnv) NThreads() int        { return e.nthreads }
func (e *runEnv) MaxNRows() int64      { return e.maxNRows }
func (e *runEnv) ReportProgress() bool { return e.reportProgress }

func (e *runEnv) Trace(format string, args ...any) {
	e.log.Debug().Msgf(format, args...)
}

func (e *runEnv) Progress(fraction float64, status ...int) {
	event := e.log.Info().Float64("fraction", fraction)
	if len(status) > 0 {
		event = event.Int("status", status[0])
	}
	event.Msg("progress")
}

// determineMemoryBudget resolves the effective memory budget: an explicit
// --mem-budget flag takes priority, then the CHUNKCSV_MEM_BUDGET
// environment variable, then 50% of detected system RAM (or
// membudget.DefaultBudgetBytes if RAM cannot be detected).
func determineMemoryBudget(cliFlag string) (*membudget.Budget, error) {
	if cliFlag != "" {
		n, err := membudget.ParseHumanSize(cliFlag)
		if err != nil {
			return nil, fmt.Errorf("read: --mem-budget: %w", err)
		}
		return membudget.New(membudget.Config{TotalBytes: n, Source: membudget.BudgetSourceCLI}), nil
	}

	if envVal := os.Getenv(memBudgetEnvVar); envVal != "" {
		n, err := membudget.ParseHumanSize(envVal)
		if err != nil {
			return nil, fmt.Errorf("read: %s: %w", memBudgetEnvVar, err)
		}
		return membudget.New(membudget.Config{TotalBytes: n, Source: membudget.BudgetSourceEnv}), nil
	}

	return membudget.NewFromSystemRAM(), nil
}
