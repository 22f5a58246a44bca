package chunkreader

import "sync/atomic"

// exceptionManager is a thread-safe single slot that captures the first
// error raised by any worker. Once set, both the parse and commit phases
// become no-ops for every subsequent iteration; the stored error is
// returned to the caller once the parallel region has joined.
//
// Capture uses a compare-and-swap on a pointer so the winner is determined
// without a mutex: every worker races to store its own error, and only the
// first one sticks.
type exceptionManager struct {
	err atomic.Pointer[error]
}

// Capture records err if no error has been captured yet. Safe to call
// concurrently from multiple workers; only the first call wins.
func (m *exceptionManager) Capture(err error) {
	if err == nil {
		return
	}
	m.err.CompareAndSwap(nil, &err)
}

// Caught reports whether an error has been captured.
func (m *exceptionManager) Caught() bool {
	return m.err.Load() != nil
}

// First returns the first captured error, or nil if none has been
// captured.
func (m *exceptionManager) First() error {
	p := m.err.Load()
	if p == nil {
		return nil
	}
	return *p
}
