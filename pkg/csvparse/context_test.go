package csvparse

import (
	"reflect"
	"testing"

	"github.com/eunmann/chunkcsv/pkg/chunkreader"
)

// memSource is a trivial in-memory ByteSource for tests.
type memSource struct {
	data []byte
}

func (m *memSource) Size() int64 { return int64(len(m.data)) }

func (m *memSource) ReadRange(start, end int64) ([]byte, error) {
	if start < 0 {
		start = 0
	}
	if end > int64(len(m.data)) {
		end = int64(len(m.data))
	}
	if end < start {
		end = start
	}
	return m.data[start:end], nil
}

// fakeStore captures SetRow calls, implementing csvparse.RowWriter.
type fakeStore struct {
	nrows int64
	rows  map[int64][]string
}

func newFakeStore() *fakeStore { return &fakeStore{rows: map[int64][]string{}} }

func (s *fakeStore) NRows() int64 { return s.nrows }

func (s *fakeStore) SetNRows(n int64) error {
	s.nrows = n
	return nil
}

func (s *fakeStore) SetRow(row int64, fields []string) error {
	cp := append([]string(nil), fields...)
	s.rows[row] = cp
	return nil
}

func TestContextReadChunkWholeInputSingleChunk(t *testing.T) {
	src := &memSource{data: []byte("id,name\n1,alice\n2,bob\n")}
	ctx := NewContext(src, DefaultDialect())

	actual, err := ctx.ReadChunk(chunkreader.ChunkCoordinates{Start: 0, End: src.Size(), TrueStart: true, TrueEnd: true})
	if err != nil {
		t.Fatalf("ReadChunk() error: %v", err)
	}
	if actual.Start != 0 || actual.End != src.Size() {
		t.Errorf("actual = %+v, want full range", actual)
	}
	if !reflect.DeepEqual(ctx.Header(), []string{"id", "name"}) {
		t.Errorf("Header() = %v, want [id name]", ctx.Header())
	}
	if ctx.UsedRows() != 2 {
		t.Fatalf("UsedRows() = %d, want 2", ctx.UsedRows())
	}

	store := newFakeStore()
	store.SetNRows(2)
	ctx.SetRow0(0)
	ctx.OrderBuffer()
	if err := ctx.PushBuffers(store); err != nil {
		t.Fatalf("PushBuffers() error: %v", err)
	}
	if !reflect.DeepEqual(store.rows[0], []string{"1", "alice"}) {
		t.Errorf("row 0 = %v, want [1 alice]", store.rows[0])
	}
	if !reflect.DeepEqual(store.rows[1], []string{"2", "bob"}) {
		t.Errorf("row 1 = %v, want [2 bob]", store.rows[1])
	}
}

func TestContextReadChunkSnapsSpeculativeStartForward(t *testing.T) {
	data := []byte("id,name\n1,alice\n2,bob\n3,carol\n")
	src := &memSource{data: data}
	ctx := NewContext(src, Dialect{Delimiter: ',', Quote: '"', HasHeader: false})

	// A speculative start landing mid-record ("lice\n2,bob\n3,carol\n")
	// must snap forward to the next record boundary.
	midRecord := int64(len("id,name\n1,a"))
	actual, err := ctx.ReadChunk(chunkreader.ChunkCoordinates{Start: midRecord, End: src.Size(), TrueStart: false, TrueEnd: true})
	if err != nil {
		t.Fatalf("ReadChunk() error: %v", err)
	}

	wantStart := int64(len("id,name\n1,alice\n"))
	if actual.Start != wantStart {
		t.Errorf("actual.Start = %d, want %d", actual.Start, wantStart)
	}
	if !actual.TrueStart || !actual.TrueEnd {
		t.Errorf("actual = %+v, want both endpoints true", actual)
	}
	if ctx.UsedRows() != 2 {
		t.Fatalf("UsedRows() = %d, want 2 (bob, carol)", ctx.UsedRows())
	}
}

func TestContextReadChunkExtendsPastNominalEndToFinishRecord(t *testing.T) {
	data := []byte("a,b\n1,2\n3,4\n5,6\n")
	src := &memSource{data: data}
	ctx := NewContext(src, Dialect{Delimiter: ',', Quote: '"', HasHeader: false})

	// Nominal end lands inside the "3,4\n" record; the chunk must extend
	// to the end of that record, not truncate mid-record.
	nominalEnd := int64(len("a,b\n1,2\n3"))
	actual, err := ctx.ReadChunk(chunkreader.ChunkCoordinates{Start: 0, End: nominalEnd, TrueStart: true, TrueEnd: false})
	if err != nil {
		t.Fatalf("ReadChunk() error: %v", err)
	}

	wantEnd := int64(len("a,b\n1,2\n3,4\n"))
	if actual.End != wantEnd {
		t.Errorf("actual.End = %d, want %d", actual.End, wantEnd)
	}
	if ctx.UsedRows() != 3 {
		t.Fatalf("UsedRows() = %d, want 3", ctx.UsedRows())
	}
}

func TestContextReadChunkNoTrailingNewlineAtEOF(t *testing.T) {
	src := &memSource{data: []byte("a,b\n1,2")}
	ctx := NewContext(src, Dialect{Delimiter: ',', Quote: '"', HasHeader: false})

	actual, err := ctx.ReadChunk(chunkreader.ChunkCoordinates{Start: 0, End: src.Size(), TrueStart: true, TrueEnd: true})
	if err != nil {
		t.Fatalf("ReadChunk() error: %v", err)
	}
	if actual.End != src.Size() {
		t.Errorf("actual.End = %d, want %d", actual.End, src.Size())
	}
	if ctx.UsedRows() != 2 {
		t.Fatalf("UsedRows() = %d, want 2", ctx.UsedRows())
	}
}

func TestContextSetUsedRowsTruncates(t *testing.T) {
	src := &memSource{data: []byte("1,2\n3,4\n5,6\n")}
	ctx := NewContext(src, Dialect{Delimiter: ',', Quote: '"', HasHeader: false})

	if _, err := ctx.ReadChunk(chunkreader.ChunkCoordinates{Start: 0, End: src.Size(), TrueStart: true, TrueEnd: true}); err != nil {
		t.Fatalf("ReadChunk() error: %v", err)
	}

	ctx.SetUsedRows(1)
	if ctx.UsedRows() != 1 {
		t.Fatalf("UsedRows() = %d, want 1", ctx.UsedRows())
	}
}

func TestContextPushBuffersNoopWhenEmpty(t *testing.T) {
	ctx := NewContext(&memSource{}, DefaultDialect())
	if err := ctx.PushBuffers(newFakeStore()); err != nil {
		t.Fatalf("PushBuffers() on empty context error: %v", err)
	}
}

func TestContextPushBuffersRejectsNonRowWriter(t *testing.T) {
	ctx := NewContext(&memSource{data: []byte("1,2\n")}, Dialect{Delimiter: ',', Quote: '"'})
	if _, err := ctx.ReadChunk(chunkreader.ChunkCoordinates{Start: 0, End: 4, TrueStart: true, TrueEnd: true}); err != nil {
		t.Fatalf("ReadChunk() error: %v", err)
	}
	ctx.OrderBuffer()

	if err := ctx.PushBuffers(plainStore{}); err == nil {
		t.Fatal("PushBuffers() should reject a store that isn't a RowWriter")
	}
}

// plainStore implements only chunkreader.ColumnStore, not RowWriter.
type plainStore struct{}

func (plainStore) NRows() int64        { return 0 }
func (plainStore) SetNRows(int64) error { return nil }
