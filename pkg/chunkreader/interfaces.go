package chunkreader

// ParseContext is the per-worker collaborator that owns scratch buffers and
// performs the actual byte-range parsing. Each worker goroutine owns
// exactly one ParseContext for the lifetime of the parallel region;
// ParseContexts are never shared across workers.
type ParseContext interface {
	// ReadChunk parses the byte range [expected.Start, expected.End) into
	// the context's internal buffers. The returned coordinates reflect the
	// range truly consumed, which may differ from expected when the
	// implementation snaps to record boundaries.
	ReadChunk(expected ChunkCoordinates) (actual ChunkCoordinates, err error)

	// PushBuffers copies the context's buffered rows into store starting at
	// Row0. It must be a no-op when UsedRows() == 0.
	PushBuffers(store ColumnStore) error

	// OrderBuffer marks the context's current buffer ready; the next call
	// to PushBuffers (on the same worker's next iteration) flushes it.
	OrderBuffer()

	// Row0 / SetRow0 track the row offset this context's buffered rows will
	// occupy in the column store once committed.
	Row0() int64
	SetRow0(int64)

	// UsedRows / SetUsedRows track how many rows this context's buffer
	// holds. SetUsedRows is called by the orchestrator when truncating at
	// the row cap.
	UsedRows() int64
	SetUsedRows(int64)
}

// ColumnStore is the collaborator that owns physical column storage.
type ColumnStore interface {
	// NRows returns the number of rows currently allocated.
	NRows() int64

	// SetNRows resizes the store to exactly n rows (grow or truncate).
	SetNRows(n int64) error
}

// Env is the host environment collaborator: the input byte range, run
// parameters, and diagnostic/progress sinks.
type Env interface {
	SOF() int64
	EOF() int64
	NThreads() int
	MaxNRows() int64
	ReportProgress() bool
	Trace(format string, args ...any)
	// Progress reports fractional completion in [0,1]. status, when given,
	// is 1 (normal), 2 (error), or 3 (keyboard interrupt) and is only sent
	// with the final progress event of a run.
	Progress(fraction float64, status ...int)
}

// BoundaryHook is an optional extension point a concrete parser may supply
// to adjust proposed chunk boundaries (e.g. scan forward to the next record
// boundary). The default behavior is a no-op.
type BoundaryHook interface {
	AdjustChunkCoordinates(coords *ChunkCoordinates, ctx ParseContext)
}

// NoopHook is the default BoundaryHook: it leaves coordinates unchanged.
type NoopHook struct{}

// AdjustChunkCoordinates implements BoundaryHook.
func (NoopHook) AdjustChunkCoordinates(*ChunkCoordinates, ParseContext) {}
