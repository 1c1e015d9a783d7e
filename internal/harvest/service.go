// Package harvest scans a mailbox folder and assembles records of the
// messages found there, saving their attachments along the way.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joshsymonds/mailharvest/internal/address"
	"github.com/joshsymonds/mailharvest/internal/mailstore"
	"github.com/joshsymonds/mailharvest/internal/rate"
)

const defaultWorkers = 4

// Service executes scans against one mail store account.
type Service struct {
	Store   mailstore.Mailbox
	Limiter rate.Limiter
	Logger  *slog.Logger
}

// NewService constructs a Service with sane defaults.
func NewService(store mailstore.Mailbox, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Store:   store,
		Limiter: limiter,
		Logger:  logger,
	}
}

// Scan walks the folder named in spec and returns one record per included
// message. Caller mistakes (bad account address, unknown folder) and store
// failures mid-scan are logged and yield what was accumulated so far; the
// returned error is reserved for local environment problems.
func (s *Service) Scan(ctx context.Context, spec Spec) ([]Record, error) {
	records := []Record{}

	if !address.Valid(spec.Account) {
		s.Logger.ErrorContext(ctx, "invalid account address", "account", spec.Account)
		return records, nil
	}

	if err := os.MkdirAll(spec.OutputDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", spec.OutputDir, err)
	}

	folder, found, err := s.findFolder(ctx, spec.Folder)
	if err != nil {
		s.Logger.ErrorContext(ctx, "list folders", "error", err)
		return records, nil
	}
	if !found {
		s.Logger.ErrorContext(ctx, "folder not found", "folder", spec.Folder)
		return records, nil
	}

	q := mailstore.Query{SubjectContains: spec.SubjectContains, Since: spec.Since}
	msgs, err := s.listMessages(ctx, folder.ID, q)
	if err != nil {
		s.Logger.ErrorContext(ctx, "query messages", "folder", spec.Folder, "error", err)
		return records, nil
	}

	for _, msg := range msgs {
		if !spec.IncludeRead && !msg.Unread {
			continue
		}
		rec, buildErr := s.buildRecord(ctx, msg, spec)
		if buildErr != nil {
			s.Logger.ErrorContext(ctx, "process message", "message", msg.ID, "error", buildErr)
			continue
		}
		records = append(records, rec)
	}

	s.Logger.InfoContext(ctx, "scan complete", "folder", spec.Folder, "processed", len(records))
	return records, nil
}

func (s *Service) findFolder(ctx context.Context, name string) (mailstore.Folder, bool, error) {
	if err := s.wait(ctx, "rate limit folders"); err != nil {
		return mailstore.Folder{}, false, err
	}
	folders, err := s.Store.ChildFolders(ctx)
	if err != nil {
		return mailstore.Folder{}, false, fmt.Errorf("list folders: %w", err)
	}
	for _, f := range folders {
		if f.Name == name {
			return f, true, nil
		}
	}
	return mailstore.Folder{}, false, nil
}

func (s *Service) listMessages(ctx context.Context, folder mailstore.FolderID, q mailstore.Query) ([]mailstore.Message, error) {
	if err := s.wait(ctx, "rate limit messages"); err != nil {
		return nil, err
	}
	msgs, err := s.Store.Messages(ctx, folder, q)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return msgs, nil
}

func (s *Service) wait(ctx context.Context, operation string) error {
	if s.Limiter == nil {
		return nil
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}
