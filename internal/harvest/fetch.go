package harvest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/joshsymonds/mailharvest/internal/mailstore"
)

// buildRecord assembles the record for one message, fetching its
// attachments concurrently. A message whose sender the store could not
// resolve fails the whole build; the caller logs and skips it.
func (s *Service) buildRecord(ctx context.Context, msg mailstore.Message, spec Spec) (Record, error) {
	if msg.From == "" {
		return Record{}, fmt.Errorf("resolve sender of message %s", msg.ID)
	}
	if err := s.wait(ctx, "rate limit attachments"); err != nil {
		return Record{}, err
	}
	atts, err := s.Store.Attachments(ctx, msg.ID)
	if err != nil {
		return Record{}, fmt.Errorf("list attachments: %w", err)
	}

	return Record{
		Name:           msg.Subject,
		Subject:        msg.Subject,
		ConversationID: msg.ConversationID,
		From:           msg.From,
		Sender:         msg.SenderName,
		Body:           msg.Body,
		Files:          s.fetchAll(ctx, msg.ID, atts, spec),
		Status:         StatusPending,
	}, nil
}

// fetchAll fans one worker out per attachment, bounded by spec.Workers,
// and waits for every worker before returning. Files order follows
// completion order, not attachment order.
func (s *Service) fetchAll(ctx context.Context, msg mailstore.MessageID, atts []mailstore.Attachment, spec Spec) []AttachmentRecord {
	if len(atts) == 0 {
		return []AttachmentRecord{}
	}
	workers := spec.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	sem := make(chan struct{}, workers)
	results := make(chan AttachmentRecord, len(atts))
	var wg sync.WaitGroup

	for _, att := range atts {
		wg.Add(1)
		sem <- struct{}{}
		go func(att mailstore.Attachment) {
			defer wg.Done()
			defer func() { <-sem }()
			if rec, ok := s.fetchAttachment(ctx, msg, att, spec); ok {
				results <- rec
			}
		}(att)
	}

	wg.Wait()
	close(results)

	files := make([]AttachmentRecord, 0, len(atts))
	for rec := range results {
		files = append(files, rec)
	}
	return files
}

// fetchAttachment downloads one attachment if its extension passes the
// allow-list. Failures are logged and swallowed so one bad attachment
// never sinks the record.
func (s *Service) fetchAttachment(ctx context.Context, msg mailstore.MessageID, att mailstore.Attachment, spec Spec) (AttachmentRecord, bool) {
	if !typeAllowed(att.Name, spec.AllowedTypes) {
		return AttachmentRecord{}, false
	}

	path := filepath.Join(spec.OutputDir, att.Name)
	if err := s.wait(ctx, "rate limit attachment save"); err != nil {
		s.Logger.ErrorContext(ctx, "save attachment", "name", att.Name, "error", err)
		return AttachmentRecord{}, false
	}
	if err := s.Store.SaveAttachment(ctx, msg, att.ID, path); err != nil {
		s.Logger.ErrorContext(ctx, "save attachment", "name", att.Name, "error", err)
		return AttachmentRecord{}, false
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	s.Logger.InfoContext(ctx, "attachment saved", "name", att.Name)
	return AttachmentRecord{Path: abs, Name: att.Name, ID: uuid.NewString()}, true
}

func typeAllowed(name string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	ext := filepath.Ext(name)
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}
