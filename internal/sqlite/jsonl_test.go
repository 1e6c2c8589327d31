package sqlite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAtomicWriteJSONL(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.jsonl")

	records := []json.RawMessage{
		json.RawMessage(`{"key":"value1"}`),
		json.RawMessage(`{"key":"value2"}`),
	}
	if err := writeJSONL(path, records); err != nil {
		t.Fatalf("writeJSONL failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 lines, got %d", len(lines))
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(tmpDir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestWriteJSONLReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.jsonl")

	if err := writeJSONL(path, []json.RawMessage{json.RawMessage(`{"n":1}`), json.RawMessage(`{"n":2}`)}); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := writeJSONL(path, []json.RawMessage{json.RawMessage(`{"n":3}`)}); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	records, err := readJSONL(path)
	if err != nil {
		t.Fatalf("readJSONL failed: %v", err)
	}
	if len(records) != 1 || string(records[0]) != `{"n":3}` {
		t.Errorf("expected the second write only, got %q", records)
	}
}

func TestJSONLEmptyAndMalformedLinesSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.jsonl")
	content := `{"offer_id":"o1","state":"OPEN"}

{invalid json here
{"offer_id":"o2","state":"SUPERSEDED"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	records, err := readJSONL(path)
	if err != nil {
		t.Fatalf("readJSONL failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if !strings.Contains(string(records[1]), `"o2"`) {
		t.Errorf("expected second record to be o2, got %s", records[1])
	}
}

func TestReadJSONLMissingFile(t *testing.T) {
	if _, err := readJSONL(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
