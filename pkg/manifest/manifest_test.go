package manifest

import (
	"strings"
	"testing"
)

func TestParseValid(t *testing.T) {
	doc := `{
		"files": [
			{"key": "part-000.csv", "size": 1000},
			{"key": "part-001.csv", "size": 2000}
		],
		"columns": ["id", "name", "value"]
	}`

	m, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(m.Files) != 2 {
		t.Fatalf("len(Files) = %d, want 2", len(m.Files))
	}
	if m.TotalSize() != 3000 {
		t.Errorf("TotalSize() = %d, want 3000", m.TotalSize())
	}
}

func TestParseRejectsEmptyFileList(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"files": []}`))
	if err == nil {
		t.Fatal("Parse() should reject a manifest with no files")
	}
}

func TestParseRejectsMissingKey(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"files": [{"size": 100}]}`))
	if err == nil {
		t.Fatal("Parse() should reject a file entry with no key")
	}
}

func TestParseRejectsNegativeSize(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"files": [{"key": "a.csv", "size": -1}]}`))
	if err == nil {
		t.Fatal("Parse() should reject a negative size")
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := Parse(strings.NewReader(`not json`))
	if err == nil {
		t.Fatal("Parse() should reject malformed JSON")
	}
}
