package jsonfile

import (
	"os"
	"path/filepath"
	"testing"
)

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteAtomicAndReadInto(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")

	if err := WriteAtomic(path, testDoc{Name: "pass", Count: 3}); err != nil {
		t.Fatalf("WriteAtomic failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}

	var out testDoc
	if !ReadInto(path, &out) {
		t.Fatalf("ReadInto failed for existing file")
	}
	if out.Name != "pass" || out.Count != 3 {
		t.Fatalf("unexpected document: %+v", out)
	}
}

func TestReadIntoMissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()

	var out testDoc
	if ReadInto(filepath.Join(dir, "missing.json"), &out) {
		t.Fatalf("ReadInto should fail for missing file")
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{not-json"), 0644); err != nil {
		t.Fatal(err)
	}
	out = testDoc{Name: "untouched"}
	if ReadInto(corrupt, &out) {
		t.Fatalf("ReadInto should fail for corrupt file")
	}
	if out.Name != "untouched" {
		t.Fatalf("ReadInto mutated out on failure")
	}
}
