package harvest

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteJSONRecordShape(t *testing.T) {
	records := []Record{{
		Name:           "Report B",
		Subject:        "Report B",
		ConversationID: "c1",
		From:           "alice@example.com",
		Sender:         "Alice",
		Body:           "see attached",
		Files: []AttachmentRecord{
			{Path: "/data/summary.pdf", Name: "summary.pdf", ID: "uuid-1"},
		},
		Status: StatusPending,
	}}

	path := filepath.Join(t.TempDir(), "records.json")
	if err := WriteJSON(records, path); err != nil {
		t.Fatalf("write json: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected 1 record, got %d", len(decoded))
	}
	rec := decoded[0]
	for _, key := range []string{"name", "subject", "conversation_id", "from", "sender", "body", "files", "status"} {
		if _, ok := rec[key]; !ok {
			t.Errorf("record is missing key %q", key)
		}
	}
	if rec["status"] != "pending" {
		t.Errorf("status = %v", rec["status"])
	}
	files, ok := rec["files"].([]any)
	if !ok || len(files) != 1 {
		t.Fatalf("files = %v", rec["files"])
	}
	file := files[0].(map[string]any)
	for _, key := range []string{"path", "name", "id"} {
		if _, ok := file[key]; !ok {
			t.Errorf("file entry is missing key %q", key)
		}
	}
}

func TestWriteJSONEmptyPath(t *testing.T) {
	if err := WriteJSON(nil, "  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestPrintHuman(t *testing.T) {
	records := []Record{
		{
			Subject: "Report B",
			Sender:  "Alice",
			From:    "alice@example.com",
			Files:   []AttachmentRecord{{Path: "/data/summary.pdf", Name: "summary.pdf"}},
		},
		{Subject: "Report A", Sender: "Bob", From: "bob@example.com"},
	}

	var buf bytes.Buffer
	if err := PrintHuman(records, &buf); err != nil {
		t.Fatalf("print: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "2 matching messages") {
		t.Errorf("missing summary line: %q", out)
	}
	if !strings.Contains(out, "Alice <alice@example.com>") {
		t.Errorf("missing sender line: %q", out)
	}
	if !strings.Contains(out, "/data/summary.pdf") {
		t.Errorf("missing file line: %q", out)
	}
	if !strings.Contains(out, "files: none") {
		t.Errorf("missing empty-files line: %q", out)
	}
}
