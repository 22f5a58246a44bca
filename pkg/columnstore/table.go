// Package columnstore implements the ColumnStore collaborator for
// pkg/chunkreader: an in-memory, untyped columnar table. Values are kept
// as strings — type inference is explicitly out of scope (see spec
// Non-goals) — with one slice per column.
package columnstore

import (
	"fmt"
	"sync"
)

// Table is a columnar, untyped row store. SetNRows grows or shrinks every
// column slice under the exclusive side of a RWMutex; SetRow takes the
// shared side. This RWMutex is the "reallocation lock" named in the
// chunked-read spec: a worker writing into already-allocated rows via
// SetRow only ever contends with a growth call from a different worker's
// commit phase, never with another SetRow, since chunkreader's ordered
// commit phase ensures row ranges handed to concurrent PushBuffers calls
// never overlap.
type Table struct {
	mu      sync.RWMutex
	columns [][]string
	ncols   int
	nrows   int64
	header  []string
}

// New creates an empty table with ncols columns.
func New(ncols int) *Table {
	return &Table{
		columns: make([][]string, ncols),
		ncols:   ncols,
	}
}

// SetHeader records column names. It does not affect storage; it is
// metadata consulted by pkg/tablewrite when exporting.
func (t *Table) SetHeader(names []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.header = append([]string(nil), names...)
}

// Header returns the column names, or nil if none were set.
func (t *Table) Header() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.header
}

// NRows implements chunkreader.ColumnStore.
func (t *Table) NRows() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nrows
}

// NCols returns the number of columns.
func (t *Table) NCols() int {
	return t.ncols
}

// SetNRows implements chunkreader.ColumnStore. It grows or truncates every
// column slice to exactly n rows, taking the exclusive lock for the
// duration of the resize.
func (t *Table) SetNRows(n int64) error {
	if n < 0 {
		return fmt.Errorf("columnstore: negative row count %d", n)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.columns {
		if int64(len(t.columns[i])) == n {
			continue
		}
		grown := make([]string, n)
		copy(grown, t.columns[i])
		t.columns[i] = grown
	}
	t.nrows = n
	return nil
}

// SetRow implements csvparse.RowWriter: it writes one parsed record into
// row index row, one field per column. SetRow takes the shared (read)
// side of the lock — concurrent SetRow calls targeting disjoint rows
// proceed without contention; only a concurrent SetNRows excludes them.
func (t *Table) SetRow(row int64, fields []string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if row < 0 || row >= t.nrows {
		return fmt.Errorf("columnstore: row %d out of range [0,%d)", row, t.nrows)
	}
	if len(fields) != t.ncols {
		return fmt.Errorf("columnstore: row %d has %d fields, table has %d columns", row, len(fields), t.ncols)
	}
	for col, val := range fields {
		t.columns[col][row] = val
	}
	return nil
}

// Column returns a snapshot copy of one column's values. The index must be
// in [0, NCols()).
func (t *Table) Column(col int) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if col < 0 || col >= t.ncols {
		return nil, fmt.Errorf("columnstore: column %d out of range [0,%d)", col, t.ncols)
	}
	out := make([]string, len(t.columns[col]))
	copy(out, t.columns[col])
	return out, nil
}

// Get returns the value at (row, col).
func (t *Table) Get(row int64, col int) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if col < 0 || col >= t.ncols {
		return "", fmt.Errorf("columnstore: column %d out of range [0,%d)", col, t.ncols)
	}
	if row < 0 || row >= t.nrows {
		return "", fmt.Errorf("columnstore: row %d out of range [0,%d)", row, t.nrows)
	}
	return t.columns[col][row], nil
}
