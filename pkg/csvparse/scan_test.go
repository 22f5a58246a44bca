package csvparse

import (
	"reflect"
	"testing"
)

func TestScanRecordsBasic(t *testing.T) {
	buf := []byte("a,b,c\n1,2,3\n")
	rows, consumed := scanRecords(buf, DefaultDialect(), false)

	want := [][]string{{"a", "b", "c"}, {"1", "2", "3"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if consumed != len(buf) {
		t.Errorf("consumed = %d, want %d", consumed, len(buf))
	}
}

func TestScanRecordsPartialTrailingRecordNotAtEOF(t *testing.T) {
	buf := []byte("a,b,c\n1,2,")
	rows, consumed := scanRecords(buf, DefaultDialect(), false)

	want := [][]string{{"a", "b", "c"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if consumed != 6 {
		t.Errorf("consumed = %d, want 6", consumed)
	}
}

func TestScanRecordsTrailingRecordFlushedAtEOF(t *testing.T) {
	buf := []byte("a,b,c\n1,2,3")
	rows, consumed := scanRecords(buf, DefaultDialect(), true)

	want := [][]string{{"a", "b", "c"}, {"1", "2", "3"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if consumed != len(buf) {
		t.Errorf("consumed = %d, want %d", consumed, len(buf))
	}
}

func TestScanRecordsQuotedFieldWithEmbeddedDelimiterAndNewline(t *testing.T) {
	buf := []byte(`id,note
1,"hello, world"
2,"line1
line2"
`)
	rows, consumed := scanRecords(buf, DefaultDialect(), false)

	want := [][]string{
		{"id", "note"},
		{"1", "hello, world"},
		{"2", "line1\nline2"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if consumed != len(buf) {
		t.Errorf("consumed = %d, want %d", consumed, len(buf))
	}
}

func TestScanRecordsEscapedQuote(t *testing.T) {
	buf := []byte(`1,"say ""hi"""` + "\n")
	rows, _ := scanRecords(buf, DefaultDialect(), false)

	want := [][]string{{"1", `say "hi"`}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestScanRecordsCRLF(t *testing.T) {
	buf := []byte("a,b\r\n1,2\r\n")
	rows, consumed := scanRecords(buf, DefaultDialect(), false)

	want := [][]string{{"a", "b"}, {"1", "2"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if consumed != len(buf) {
		t.Errorf("consumed = %d, want %d", consumed, len(buf))
	}
}

func TestScanRecordsCustomDelimiter(t *testing.T) {
	d := Dialect{Delimiter: '\t', Quote: '"'}
	buf := []byte("a\tb\tc\n1\t2\t3\n")
	rows, _ := scanRecords(buf, d, false)

	want := [][]string{{"a", "b", "c"}, {"1", "2", "3"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}
