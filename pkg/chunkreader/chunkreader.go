// Package chunkreader implements a parallel chunked reader driver: it
// partitions a large in-memory byte range into roughly equal chunks,
// dispatches parsing across a worker pool, and commits the parsed rows into
// a columnar store in strict input order.
//
// The package does not parse fields, infer column types, or choose a
// quoting dialect — those concerns belong to the ParseContext and
// ColumnStore collaborators supplied by the caller (see pkg/csvparse and
// pkg/columnstore for concrete implementations).
package chunkreader

import "errors"

// ErrInvariant is returned when the boundary reconciler cannot converge
// within its two-attempt retry budget. This indicates a ParseContext that
// violates its contract (failing to consume from a true boundary to the
// next true boundary), not a transient condition — it is never retried
// further.
var ErrInvariant = errors.New("chunkreader: parse context violated boundary invariant")

// ChunkCoordinates describes a chunk's byte range and whether each endpoint
// is known to coincide with a record boundary ("true") or is a speculative
// guess that may land mid-record.
type ChunkCoordinates struct {
	Start     int64
	End       int64
	TrueStart bool
	TrueEnd   bool
}

// Len returns the number of bytes in the range.
func (c ChunkCoordinates) Len() int64 {
	if c.End < c.Start {
		return 0
	}
	return c.End - c.Start
}
