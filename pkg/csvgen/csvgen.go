// Package csvgen generates synthetic delimited-text data for benchmarking
// and testing the chunked reader pipeline, generalizing the teacher's
// benchutil.Generator (synthetic S3 object keys/sizes/tiers) from a fixed
// three-field S3 inventory row to an arbitrary CSV column layout.
package csvgen

import (
	"fmt"
	"io"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// ColumnKind selects how a column's values are synthesized.
type ColumnKind int

const (
	// Sequential emits "1", "2", "3", ... in row order.
	Sequential ColumnKind = iota
	// UUID emits a github.com/google/uuid version-4 string per row, drawn
	// from the generator's seeded random source.
	UUID
	// LowCardinality draws from a small fixed set of values, weighted
	// toward the first few entries — good for exercising pkg/dictbuild.
	LowCardinality
	// Size emits a log-normal-ish byte count, mirroring benchutil's
	// generateSize distribution (mostly small, a long tail of large).
	Size
	// Key emits a realistic slash-separated path, mirroring benchutil's
	// generateKey.
	Key
	// Quoted emits short text that sometimes embeds a delimiter, quote, or
	// newline, forcing callers to exercise csvparse's quote handling.
	Quoted
)

// ColumnSpec describes one output column.
type ColumnSpec struct {
	Name    string
	Kind    ColumnKind
	Choices []string // used by LowCardinality
}

// Config controls synthetic CSV generation.
type Config struct {
	NumRows int
	Columns []ColumnSpec
	Seed    int64
}

// DefaultConfig returns a config with a realistic mix of column kinds: a
// sequential ID, a UUID, a path-like key, a size column, and a
// low-cardinality storage class column, the kind of shape
// pkg/tablewrite.ExportConfig.DictColumns is meant to compress.
func DefaultConfig(numRows int) Config {
	return Config{
		NumRows: numRows,
		Seed:    42,
		Columns: []ColumnSpec{
			{Name: "id", Kind: Sequential},
			{Name: "request_id", Kind: UUID},
			{Name: "key", Kind: Key},
			{Name: "size", Kind: Size},
			{Name: "storage_class", Kind: LowCardinality, Choices: []string{
				"STANDARD", "STANDARD", "STANDARD", "STANDARD_IA", "GLACIER", "DEEP_ARCHIVE", "INTELLIGENT_TIERING",
			}},
			{Name: "note", Kind: Quoted},
		},
	}
}

// Generator produces synthetic CSV rows from a Config.
type Generator struct {
	cfg Config
	rng *rand.Rand
}

// NewGenerator creates a generator seeded for reproducible output.
func NewGenerator(cfg Config) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = 42
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// WriteCSV writes a header row followed by cfg.NumRows data rows to w,
// using "," as the delimiter and double quotes for any field that needs
// escaping. It returns the number of data rows written.
func (g *Generator) WriteCSV(w io.Writer) (int64, error) {
	header := make([]string, len(g.cfg.Columns))
	for i, col := range g.cfg.Columns {
		header[i] = col.Name
	}
	if err := writeRecord(w, header); err != nil {
		return 0, fmt.Errorf("csvgen: write header: %w", err)
	}

	for r := 0; r < g.cfg.NumRows; r++ {
		fields := make([]string, len(g.cfg.Columns))
		for i, col := range g.cfg.Columns {
			fields[i] = g.value(col, r)
		}
		if err := writeRecord(w, fields); err != nil {
			return int64(r), fmt.Errorf("csvgen: write row %d: %w", r, err)
		}
	}
	return int64(g.cfg.NumRows), nil
}

func (g *Generator) value(col ColumnSpec, row int) string {
	switch col.Kind {
	case Sequential:
		return fmt.Sprintf("%d", row+1)
	case UUID:
		return uuid.Must(uuid.NewRandomFromReader(g.rng)).String()
	case LowCardinality:
		if len(col.Choices) == 0 {
			return ""
		}
		return col.Choices[g.rng.Intn(len(col.Choices))]
	case Size:
		return fmt.Sprintf("%d", g.generateSize())
	case Key:
		return g.generateKey()
	case Quoted:
		return g.generateQuotedText()
	default:
		return ""
	}
}

func (g *Generator) generateSize() uint64 {
	switch g.rng.Intn(10) {
	case 0:
		return uint64(g.rng.Intn(1024))
	case 1, 2, 3:
		return uint64(1024 + g.rng.Intn(1024*1024))
	case 4, 5, 6, 7:
		return uint64(1024*1024 + g.rng.Intn(100*1024*1024))
	case 8:
		return uint64(100*1024*1024 + g.rng.Intn(900*1024*1024))
	default:
		return uint64(1024*1024*1024 + g.rng.Int63n(4*1024*1024*1024))
	}
}

var keyCategories = []string{"logs", "data", "exports", "backups", "raw", "processed"}

func (g *Generator) generateKey() string {
	depth := 1 + g.rng.Intn(5)
	segments := make([]string, 0, depth+1)
	for d := 0; d < depth; d++ {
		switch g.rng.Intn(3) {
		case 0:
			segments = append(segments, fmt.Sprintf("%d", 2020+g.rng.Intn(5)))
		case 1:
			segments = append(segments, fmt.Sprintf("user_%05d", g.rng.Intn(1000)))
		default:
			segments = append(segments, keyCategories[g.rng.Intn(len(keyCategories))])
		}
	}
	segments = append(segments, fmt.Sprintf("file_%08x.dat", g.rng.Uint32()))
	return strings.Join(segments, "/")
}

var quotedPhrases = []string{
	"ok", "needs review", `contains a "quoted" word`, "multi, field, value", "line\nbreak", "plain text",
}

func (g *Generator) generateQuotedText() string {
	return quotedPhrases[g.rng.Intn(len(quotedPhrases))]
}

// writeRecord writes one CSV record, quoting any field that contains the
// delimiter, a quote character, or a newline.
func writeRecord(w io.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if needsQuoting(f) {
			f = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		}
		if _, err := io.WriteString(w, f); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func needsQuoting(s string) bool {
	return strings.ContainsAny(s, ",\"\n")
}
