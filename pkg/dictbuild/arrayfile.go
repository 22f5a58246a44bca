package dictbuild

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/eunmann/chunkcsv/pkg/fileutil"
)

// arrayMagic/arrayVersion/arrayHeaderSize mirror the header fileutil.ColumnFileValid
// and fileutil.BlobFileValid validate: magic(4) + version(4) + count(8) + width(4) + reserved(4).
const (
	arrayMagic      uint32 = 0x53334944 // "S3ID"
	arrayVersion    uint32 = 1
	arrayHeaderSize        = 24
)

var (
	errInvalidHeader  = errors.New("dictbuild: invalid array header")
	errMagicMismatch  = errors.New("dictbuild: magic mismatch")
	errVersionMismatc = errors.New("dictbuild: version mismatch")
	errBoundsCheck    = errors.New("dictbuild: index out of bounds")
)

func encodeArrayHeader(count uint64, width uint32) []byte {
	buf := make([]byte, arrayHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], arrayMagic)
	binary.LittleEndian.PutUint32(buf[4:8], arrayVersion)
	binary.LittleEndian.PutUint64(buf[8:16], count)
	binary.LittleEndian.PutUint32(buf[16:20], width)
	return buf
}

// arrayWriter writes a fixed-width columnar array file in the format
// pkg/fileutil.ColumnFileValid validates, adapted from the teacher's
// format.ArrayWriter.
type arrayWriter struct {
	file   *os.File
	writer *bufio.Writer
	count  uint64
	width  uint32
}

func newArrayWriter(path string, width uint32) (*arrayWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("dictbuild: create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(encodeArrayHeader(0, width)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("dictbuild: write header for %s: %w", path, err)
	}
	return &arrayWriter{file: f, writer: w, width: width}, nil
}

func (w *arrayWriter) WriteU64(val uint64) error {
	if w.width != 8 {
		return fmt.Errorf("dictbuild: width mismatch, expected 8 got %d", w.width)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], val)
	if _, err := w.writer.Write(buf[:]); err != nil {
		return fmt.Errorf("dictbuild: write u64: %w", err)
	}
	w.count++
	return nil
}

func (w *arrayWriter) Count() uint64 { return w.count }

func (w *arrayWriter) Close() error {
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("dictbuild: flush: %w", err)
	}
	if _, err := w.file.Seek(0, 0); err != nil {
		w.file.Close()
		return fmt.Errorf("dictbuild: seek: %w", err)
	}
	if _, err := w.file.Write(encodeArrayHeader(w.count, w.width)); err != nil {
		w.file.Close()
		return fmt.Errorf("dictbuild: update header: %w", err)
	}
	return w.file.Close()
}

// arrayReader provides mmap-backed read access to an arrayWriter's output.
type arrayReader struct {
	src   *fileutil.MmapSource
	data  []byte
	count uint64
	width uint32
}

func openArrayReader(path string) (*arrayReader, error) {
	src, err := fileutil.OpenMmapSource(path)
	if err != nil {
		return nil, fmt.Errorf("dictbuild: open %s: %w", path, err)
	}
	if src.Size() < arrayHeaderSize {
		src.Close()
		return nil, errInvalidHeader
	}
	header, err := src.ReadRange(0, arrayHeaderSize)
	if err != nil {
		src.Close()
		return nil, err
	}
	magic := binary.LittleEndian.Uint32(header[0:4])
	version := binary.LittleEndian.Uint32(header[4:8])
	count := binary.LittleEndian.Uint64(header[8:16])
	width := binary.LittleEndian.Uint32(header[16:20])
	if magic != arrayMagic {
		src.Close()
		return nil, errMagicMismatch
	}
	if version != arrayVersion {
		src.Close()
		return nil, errVersionMismatc
	}
	expected := int64(arrayHeaderSize) + int64(count)*int64(width)
	if src.Size() < expected {
		src.Close()
		return nil, fmt.Errorf("dictbuild: %s too small: %d < %d", path, src.Size(), expected)
	}
	data, err := src.ReadRange(arrayHeaderSize, src.Size())
	if err != nil {
		src.Close()
		return nil, err
	}
	return &arrayReader{src: src, data: data, count: count, width: width}, nil
}

func (r *arrayReader) Count() uint64 { return r.count }

func (r *arrayReader) GetU64(idx uint64) (uint64, error) {
	if idx >= r.count {
		return 0, errBoundsCheck
	}
	return binary.LittleEndian.Uint64(r.data[idx*8:]), nil
}

func (r *arrayReader) Close() error { return r.src.Close() }

// blobWriter writes variable-length values alongside an offsets array,
// adapted from the teacher's format.BlobWriter.
type blobWriter struct {
	blobFile   *os.File
	blobWriter *bufio.Writer
	offsets    *arrayWriter
	offset     uint64
}

func newBlobWriter(blobPath, offsetsPath string) (*blobWriter, error) {
	blobFile, err := os.Create(blobPath)
	if err != nil {
		return nil, fmt.Errorf("dictbuild: create %s: %w", blobPath, err)
	}
	offsets, err := newArrayWriter(offsetsPath, 8)
	if err != nil {
		blobFile.Close()
		os.Remove(blobPath)
		return nil, err
	}
	return &blobWriter{blobFile: blobFile, blobWriter: bufio.NewWriter(blobFile), offsets: offsets}, nil
}

func (w *blobWriter) WriteString(s string) error {
	if err := w.offsets.WriteU64(w.offset); err != nil {
		return err
	}
	n, err := w.blobWriter.WriteString(s)
	if err != nil {
		return fmt.Errorf("dictbuild: write blob string: %w", err)
	}
	w.offset += uint64(n)
	return nil
}

func (w *blobWriter) Close() error {
	if err := w.offsets.WriteU64(w.offset); err != nil {
		w.blobWriter.Flush()
		w.blobFile.Close()
		w.offsets.Close()
		return err
	}
	if err := w.blobWriter.Flush(); err != nil {
		w.blobFile.Close()
		w.offsets.Close()
		return fmt.Errorf("dictbuild: flush blob: %w", err)
	}
	if err := w.blobFile.Close(); err != nil {
		w.offsets.Close()
		return fmt.Errorf("dictbuild: close blob: %w", err)
	}
	return w.offsets.Close()
}

// blobReader provides mmap-backed read access to a blobWriter's output.
type blobReader struct {
	blob    *fileutil.MmapSource
	offsets *arrayReader
}

func openBlobReader(blobPath, offsetsPath string) (*blobReader, error) {
	blob, err := fileutil.OpenMmapSource(blobPath)
	if err != nil {
		return nil, fmt.Errorf("dictbuild: open %s: %w", blobPath, err)
	}
	offsets, err := openArrayReader(offsetsPath)
	if err != nil {
		blob.Close()
		return nil, err
	}
	return &blobReader{blob: blob, offsets: offsets}, nil
}

func (r *blobReader) Count() uint64 {
	if r.offsets.Count() == 0 {
		return 0
	}
	return r.offsets.Count() - 1
}

func (r *blobReader) Get(idx uint64) (string, error) {
	if idx >= r.Count() {
		return "", errBoundsCheck
	}
	start, err := r.offsets.GetU64(idx)
	if err != nil {
		return "", err
	}
	end, err := r.offsets.GetU64(idx + 1)
	if err != nil {
		return "", err
	}
	buf, err := r.blob.ReadRange(int64(start), int64(end))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func (r *blobReader) Close() error {
	err1 := r.blob.Close()
	err2 := r.offsets.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
