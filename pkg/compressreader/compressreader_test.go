package compressreader

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestDetectCodec(t *testing.T) {
	cases := []struct {
		name string
		want Codec
	}{
		{"data.csv.gz", Gzip},
		{"data.csv.gzip", Gzip},
		{"data.csv.zst", Zstd},
		{"data.csv.zstd", Zstd},
		{"data.csv.br", Brotli},
		{"data.csv.lz4", LZ4},
		{"data.csv", None},
		{"data.CSV.GZ", Gzip},
	}
	for _, tc := range cases {
		if got := DetectCodec(tc.name); got != tc.want {
			t.Errorf("DetectCodec(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNewReaderNone(t *testing.T) {
	r, closeFn, err := NewReader(bytes.NewReader([]byte("a,b,c\n")), None)
	if err != nil {
		t.Fatalf("NewReader() error: %v", err)
	}
	defer closeFn()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if string(got) != "a,b,c\n" {
		t.Errorf("got %q, want %q", got, "a,b,c\n")
	}
}

func TestNewReaderGzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte("id,name\n1,a\n")); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}

	r, closeFn, err := NewReader(&buf, Gzip)
	if err != nil {
		t.Fatalf("NewReader() error: %v", err)
	}
	defer closeFn()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if string(got) != "id,name\n1,a\n" {
		t.Errorf("got %q, want %q", got, "id,name\n1,a\n")
	}
}

func TestDecompressToFileZstd(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("create zstd writer: %v", err)
	}
	want := "id,name\n1,a\n2,b\n"
	if _, err := zw.Write([]byte(want)); err != nil {
		t.Fatalf("write zstd: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zstd writer: %v", err)
	}

	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "out.csv")
	if err := DecompressToFile(&buf, Zstd, dest); err != nil {
		t.Fatalf("DecompressToFile() error: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read decompressed file: %v", err)
	}
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
