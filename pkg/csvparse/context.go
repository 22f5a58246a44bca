package csvparse

import (
	"bytes"
	"fmt"

	"github.com/eunmann/chunkcsv/pkg/chunkreader"
)

// ByteSource is the byte-range input collaborator: a memory-mapped local
// file (pkg/fileutil.MmapSource) or a ranged S3 GetObject wrapper
// (pkg/s3input.Source). Both concrete sources additionally implement
// io.Closer; a context.Context for any underlying I/O (e.g. the S3
// request) is supplied once at construction rather than per call, since
// chunkreader.ParseContext.ReadChunk itself takes none — the driver
// checks the run's context for cancellation once per chunk dispatch,
// between ReadChunk calls, not inside them.
type ByteSource interface {
	// Size returns the total number of bytes available.
	Size() int64
	// ReadRange returns the bytes in the half-open range [start, end).
	ReadRange(start, end int64) ([]byte, error)
}

// RowWriter is the subset of a concrete ColumnStore that csvparse needs to
// flush buffered rows. It embeds chunkreader.ColumnStore so a RowWriter
// also satisfies that driver-facing interface.
type RowWriter interface {
	chunkreader.ColumnStore
	// SetRow writes fields into row index row. SetRow may be called out
	// of order across separate PushBuffers calls but never concurrently
	// for overlapping row ranges, since chunkreader only ever calls
	// PushBuffers for disjoint, already-allocated row ranges.
	SetRow(row int64, fields []string) error
}

// extendWindow bounds a single forward-scan read used to find the true
// end of a chunk whose last record straddles the nominal boundary.
const extendWindow = 256 * 1024

// maxExtension is the most a boundary search will read past the nominal
// end before giving up, guarding against a ParseContext scanning forever
// on a malformed, unterminated quoted field.
const maxExtension = 64 * 1024 * 1024

// Context is the csvparse ParseContext implementation. One Context is
// created per worker goroutine by the driver's newCtx factory; it is never
// shared across goroutines.
type Context struct {
	src     ByteSource
	dialect Dialect

	row0     int64
	rows     [][]string
	buffered [][]string // rows marked ready by OrderBuffer (still counted by UsedRows), awaiting PushBuffers

	header     []string
	headerSeen bool
}

// Header returns the column names parsed from the first record of the
// input, if Dialect.HasHeader is set and this Context has processed the
// chunk beginning at offset 0. It returns nil otherwise.
func (c *Context) Header() []string {
	return c.header
}

// NewContext creates a Context reading from src under dialect.
func NewContext(src ByteSource, dialect Dialect) *Context {
	return &Context{src: src, dialect: dialect}
}

// ReadChunk implements chunkreader.ParseContext.
func (c *Context) ReadChunk(expected chunkreader.ChunkCoordinates) (chunkreader.ChunkCoordinates, error) {
	size := c.src.Size()

	start := expected.Start
	if !expected.TrueStart {
		s, err := c.nextRecordStart(start, size)
		if err != nil {
			return chunkreader.ChunkCoordinates{}, err
		}
		start = s
	}
	if start > size {
		start = size
	}

	nominalEnd := expected.End
	if nominalEnd > size {
		nominalEnd = size
	}
	if nominalEnd < start {
		nominalEnd = start
	}

	rows, end, err := c.consumeThrough(start, nominalEnd, size)
	if err != nil {
		return chunkreader.ChunkCoordinates{}, err
	}

	if start == 0 && c.dialect.HasHeader && !c.headerSeen && len(rows) > 0 {
		c.header = rows[0]
		rows = rows[1:]
		c.headerSeen = true
	}

	c.rows = rows
	return chunkreader.ChunkCoordinates{Start: start, End: end, TrueStart: true, TrueEnd: true}, nil
}

// nextRecordStart finds the byte offset of the first record beginning
// strictly after pos (or 0 when pos <= 0): a coarse, non-quote-aware scan
// for the next newline at or after pos, returning the byte past it. It is
// only ever used to seed a speculative chunk start; if it lands inside a
// quoted field, the driver's single-shot reconciliation re-invokes
// ReadChunk with TrueStart true at the real predecessor boundary, which is
// always quote-consistent.
func (c *Context) nextRecordStart(pos, size int64) (int64, error) {
	if pos <= 0 {
		return 0, nil
	}
	if pos >= size {
		return size, nil
	}

	scanned := int64(0)
	cur := pos
	for scanned < maxExtension {
		winEnd := cur + extendWindow
		if winEnd > size {
			winEnd = size
		}
		buf, err := c.src.ReadRange(cur, winEnd)
		if err != nil {
			return 0, fmt.Errorf("csvparse: scan for next record start: %w", err)
		}
		if idx := bytes.IndexByte(buf, '\n'); idx >= 0 {
			return cur + int64(idx) + 1, nil
		}
		scanned += int64(len(buf))
		cur = winEnd
		if cur >= size {
			return size, nil
		}
	}
	return 0, fmt.Errorf("csvparse: no record boundary found within %d bytes of position %d", maxExtension, pos)
}

// consumeThrough reads and tokenizes records starting at start, extending
// one record at a time past nominalEnd as needed to finish whatever
// record is open there, and returns every complete record plus the true
// end of the last one consumed.
func (c *Context) consumeThrough(start, nominalEnd, size int64) ([][]string, int64, error) {
	buf, err := c.src.ReadRange(start, nominalEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("csvparse: read range [%d,%d): %w", start, nominalEnd, err)
	}

	rows, consumed := scanRecords(buf, c.dialect, nominalEnd >= size)
	pos := start + int64(consumed)

	for pos < nominalEnd && pos < size {
		row, newPos, err := c.completeOneRecord(pos, size)
		if err != nil {
			return nil, 0, err
		}
		rows = append(rows, row)
		pos = newPos
	}

	return rows, pos, nil
}

// completeOneRecord reads forward from pos — which must be a true record
// boundary — growing the read window as needed, until exactly one
// complete record has been tokenized. It returns that record and the
// offset immediately past it, ignoring any further complete records that
// happen to fall within the same read window; those are left for the
// caller's next iteration or the next chunk entirely.
func (c *Context) completeOneRecord(pos, size int64) ([]string, int64, error) {
	var window int64 = extendWindow
	var extended int64

	for extended < maxExtension {
		readEnd := pos + window
		if readEnd > size {
			readEnd = size
		}

		buf, err := c.src.ReadRange(pos, readEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("csvparse: extend read [%d,%d): %w", pos, readEnd, err)
		}

		if row, consumed, ok := scanFirstRecord(buf, c.dialect, readEnd >= size); ok {
			return row, pos + int64(consumed), nil
		}
		if readEnd >= size {
			return nil, 0, fmt.Errorf("csvparse: unterminated record at offset %d", pos)
		}

		extended += window
		window *= 2
	}
	return nil, 0, fmt.Errorf("csvparse: no record boundary found within %d bytes of offset %d", maxExtension, pos)
}

// PushBuffers implements chunkreader.ParseContext.
func (c *Context) PushBuffers(store chunkreader.ColumnStore) error {
	if len(c.buffered) == 0 {
		return nil
	}
	w, ok := store.(RowWriter)
	if !ok {
		return fmt.Errorf("csvparse: column store %T does not implement RowWriter", store)
	}
	for i, fields := range c.buffered {
		if err := w.SetRow(c.row0+int64(i), fields); err != nil {
			return fmt.Errorf("csvparse: write row %d: %w", c.row0+int64(i), err)
		}
	}
	c.buffered = nil
	c.rows = nil
	return nil
}

// OrderBuffer implements chunkreader.ParseContext. The ordered rows stay
// counted by UsedRows until PushBuffers writes them out.
func (c *Context) OrderBuffer() {
	c.buffered = c.rows
}

// Row0 implements chunkreader.ParseContext.
func (c *Context) Row0() int64 { return c.row0 }

// SetRow0 implements chunkreader.ParseContext.
func (c *Context) SetRow0(row0 int64) { c.row0 = row0 }

// UsedRows implements chunkreader.ParseContext.
func (c *Context) UsedRows() int64 { return int64(len(c.rows)) }

// SetUsedRows implements chunkreader.ParseContext. It is only ever called
// by the driver to truncate at the row cap, so n is always <= UsedRows().
func (c *Context) SetUsedRows(n int64) {
	if n < 0 {
		n = 0
	}
	if n < int64(len(c.rows)) {
		c.rows = c.rows[:n]
	}
}
