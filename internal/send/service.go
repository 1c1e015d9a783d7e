// Package send composes outbound messages and hands them to a mail store
// for submission. Failures come back as human-readable statuses rather
// than errors so callers can surface them directly.
package send

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joshsymonds/mailharvest/internal/address"
	"github.com/joshsymonds/mailharvest/internal/mailstore"
)

// Message is the caller-facing compose request. Attachment and embedded
// image entries are filesystem paths; their bytes are loaded at send time.
type Message struct {
	To             string
	Subject        string
	Body           string
	HTML           bool
	CC             []string
	BCC            []string
	Attachments    []Attachment
	EmbeddedImages []string
}

// Attachment references a file to attach by path, typically the saved
// copy recorded by a previous scan.
type Attachment struct {
	Path string
}

// Status is the outcome of one send attempt.
type Status struct {
	OK     bool
	Detail string
}

// Service submits messages through one mail store binding.
type Service struct {
	Sender mailstore.Sender
	Logger *slog.Logger
}

// NewService constructs a Service with sane defaults.
func NewService(sender mailstore.Sender, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{Sender: sender, Logger: logger}
}

// Send probes the store, validates the recipient, composes the outbound
// message and submits it exactly once. No retry on failure.
func (s *Service) Send(ctx context.Context, msg Message) Status {
	if err := s.Sender.Probe(ctx); err != nil {
		s.Logger.ErrorContext(ctx, "mail store probe failed", "error", err)
		return Status{Detail: "mail store is not reachable"}
	}
	if !address.Valid(msg.To) {
		s.Logger.ErrorContext(ctx, "invalid recipient address", "to", msg.To)
		return Status{Detail: fmt.Sprintf("invalid recipient address: %s", msg.To)}
	}

	out, err := s.compose(ctx, msg)
	if err != nil {
		s.Logger.ErrorContext(ctx, "compose message", "error", err)
		return Status{Detail: fmt.Sprintf("error sending message: %v", err)}
	}
	if err := s.Sender.Send(ctx, out); err != nil {
		s.Logger.ErrorContext(ctx, "send message", "to", msg.To, "error", err)
		return Status{Detail: fmt.Sprintf("error sending message: %v", err)}
	}

	s.Logger.InfoContext(ctx, "message sent", "to", msg.To)
	return Status{OK: true, Detail: "message sent"}
}

// compose loads attachment bytes. Embedded images are tagged inline with
// their base filename as the content id; a missing embedded image fails
// the compose, while a missing regular attachment is skipped with a
// warning.
func (s *Service) compose(ctx context.Context, msg Message) (mailstore.Outbound, error) {
	out := mailstore.Outbound{
		To:      msg.To,
		CC:      msg.CC,
		BCC:     msg.BCC,
		Subject: msg.Subject,
		Body:    msg.Body,
		HTML:    msg.HTML,
	}

	for _, path := range msg.EmbeddedImages {
		content, err := os.ReadFile(path)
		if err != nil {
			return mailstore.Outbound{}, fmt.Errorf("read embedded image %s: %w", path, err)
		}
		name := filepath.Base(path)
		out.Attachments = append(out.Attachments, mailstore.OutboundAttachment{
			Name:      name,
			Content:   content,
			Inline:    true,
			ContentID: name,
		})
	}

	for _, att := range msg.Attachments {
		abs, err := filepath.Abs(att.Path)
		if err != nil {
			abs = att.Path
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.Logger.WarnContext(ctx, "attachment not found", "path", abs)
				continue
			}
			return mailstore.Outbound{}, fmt.Errorf("read attachment %s: %w", abs, err)
		}
		out.Attachments = append(out.Attachments, mailstore.OutboundAttachment{
			Name:    filepath.Base(abs),
			Content: content,
		})
	}

	return out, nil
}
