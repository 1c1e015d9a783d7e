package send

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joshsymonds/mailharvest/internal/mailstore"
)

type fakeSender struct {
	probeErr error
	sendErr  error
	sent     []mailstore.Outbound
}

func (f *fakeSender) Probe(ctx context.Context) error {
	_ = ctx
	return f.probeErr
}

func (f *fakeSender) Send(ctx context.Context, out mailstore.Outbound) error {
	_ = ctx
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, out)
	return nil
}

var _ mailstore.Sender = (*fakeSender)(nil)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestSendSuccess(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(sender, slogDiscard())

	status := svc.Send(context.Background(), Message{
		To:      "dest@example.com",
		Subject: "Hello",
		Body:    "Plain body",
		CC:      []string{"copy@example.com"},
	})
	if !status.OK {
		t.Fatalf("send failed: %s", status.Detail)
	}
	if status.Detail != "message sent" {
		t.Fatalf("detail = %q", status.Detail)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly one submission, got %d", len(sender.sent))
	}
	out := sender.sent[0]
	if out.To != "dest@example.com" || out.Subject != "Hello" || out.HTML {
		t.Fatalf("unexpected outbound: %+v", out)
	}
	if len(out.CC) != 1 || out.CC[0] != "copy@example.com" {
		t.Fatalf("cc = %v", out.CC)
	}
}

func TestSendProbeFailure(t *testing.T) {
	sender := &fakeSender{probeErr: fmt.Errorf("connection refused")}
	svc := NewService(sender, slogDiscard())

	status := svc.Send(context.Background(), Message{To: "dest@example.com", Subject: "x"})
	if status.OK {
		t.Fatalf("expected failure status")
	}
	if status.Detail != "mail store is not reachable" {
		t.Fatalf("detail = %q", status.Detail)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("nothing should be submitted after a failed probe")
	}
}

func TestSendInvalidRecipient(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(sender, slogDiscard())

	status := svc.Send(context.Background(), Message{To: "not-an-address", Subject: "x"})
	if status.OK {
		t.Fatalf("expected failure status")
	}
	if !strings.Contains(status.Detail, "invalid recipient address") {
		t.Fatalf("detail = %q", status.Detail)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("nothing should be submitted for an invalid recipient")
	}
}

func TestSendSkipsMissingAttachment(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(sender, slogDiscard())
	existing := writeTempFile(t, "report.pdf", "pdf bytes")

	status := svc.Send(context.Background(), Message{
		To:      "dest@example.com",
		Subject: "Report",
		Body:    "attached",
		Attachments: []Attachment{
			{Path: existing},
			{Path: filepath.Join(t.TempDir(), "gone.pdf")},
		},
	})
	if !status.OK {
		t.Fatalf("send should succeed without the missing attachment: %s", status.Detail)
	}
	out := sender.sent[0]
	if len(out.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(out.Attachments))
	}
	if out.Attachments[0].Name != "report.pdf" || string(out.Attachments[0].Content) != "pdf bytes" {
		t.Fatalf("unexpected attachment: %+v", out.Attachments[0])
	}
}

func TestSendEmbeddedImageInline(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(sender, slogDiscard())
	image := writeTempFile(t, "logo.png", "png bytes")

	status := svc.Send(context.Background(), Message{
		To:             "dest@example.com",
		Subject:        "Branded",
		Body:           `<img src="cid:logo.png">`,
		HTML:           true,
		EmbeddedImages: []string{image},
	})
	if !status.OK {
		t.Fatalf("send failed: %s", status.Detail)
	}
	out := sender.sent[0]
	if len(out.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(out.Attachments))
	}
	att := out.Attachments[0]
	if !att.Inline {
		t.Fatalf("embedded image should be inline")
	}
	if att.ContentID != "logo.png" || att.Name != "logo.png" {
		t.Fatalf("content id should be the base filename, got %+v", att)
	}
}

func TestSendMissingEmbeddedImageFails(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(sender, slogDiscard())

	status := svc.Send(context.Background(), Message{
		To:             "dest@example.com",
		Subject:        "Branded",
		EmbeddedImages: []string{filepath.Join(t.TempDir(), "absent.png")},
	})
	if status.OK {
		t.Fatalf("expected failure status")
	}
	if !strings.Contains(status.Detail, "error sending message") {
		t.Fatalf("detail = %q", status.Detail)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("nothing should be submitted when compose fails")
	}
}

func TestSendStoreError(t *testing.T) {
	sender := &fakeSender{sendErr: fmt.Errorf("mailbox quota exceeded")}
	svc := NewService(sender, slogDiscard())

	status := svc.Send(context.Background(), Message{To: "dest@example.com", Subject: "x"})
	if status.OK {
		t.Fatalf("expected failure status")
	}
	if !strings.Contains(status.Detail, "error sending message") {
		t.Fatalf("detail = %q", status.Detail)
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
