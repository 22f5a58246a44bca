// Package csvparse implements the ParseContext collaborator for
// pkg/chunkreader: it turns a byte range handed to it by the chunk driver
// into parsed rows, snapping speculative boundaries to true record
// boundaries and buffering rows until the driver's ordered commit phase
// flushes them into a ColumnStore.
package csvparse

// Dialect describes the delimited-text format being read.
type Dialect struct {
	// Delimiter separates fields within a record.
	Delimiter byte
	// Quote, when a field begins with it, causes delimiters and newlines
	// to be treated as literal field content until a matching unescaped
	// quote closes the field. A doubled quote ("") inside a quoted field
	// is an escaped literal quote.
	Quote byte
	// HasHeader, if true, causes the first record of the entire input
	// (not of each chunk) to be treated as column names rather than data.
	HasHeader bool
}

// DefaultDialect is plain comma-separated, double-quoted, with a header
// row — the common case.
func DefaultDialect() Dialect {
	return Dialect{Delimiter: ',', Quote: '"', HasHeader: true}
}
