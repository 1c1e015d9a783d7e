// internal/harvest/report.go
package harvest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const subjectDisplayLimit = 60

// PrintHuman writes a readable scan summary to the provided writer.
func PrintHuman(records []Record, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "mailharvest scan — %d matching messages\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(&builder, "\n%s\n", truncate(rec.Subject, subjectDisplayLimit))
		fmt.Fprintf(&builder, "  from:  %s <%s>\n", rec.Sender, rec.From)
		if len(rec.Files) == 0 {
			builder.WriteString("  files: none\n")
			continue
		}
		for _, f := range rec.Files {
			fmt.Fprintf(&builder, "  file:  %s\n", f.Path)
		}
	}
	if _, err := io.WriteString(w, builder.String()); err != nil {
		return fmt.Errorf("write human report: %w", err)
	}
	return nil
}

// WriteJSON serializes the records to disk.
func WriteJSON(records []Record, path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return fmt.Errorf("path must not be empty")
	}
	clean = filepath.Clean(clean)
	f, err := os.OpenFile(clean, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", clean, err)
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if encodeErr := enc.Encode(records); encodeErr != nil {
		return fmt.Errorf("encode records: %w", encodeErr)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
