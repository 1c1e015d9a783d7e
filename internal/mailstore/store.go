package mailstore

import "context"

// Mailbox is the narrow read surface mailharvest drives: folder discovery,
// filtered message queries, and attachment download for one account.
type Mailbox interface {
	// Probe checks that the store is reachable and the account exists.
	Probe(ctx context.Context) error
	// ChildFolders lists the immediate children of the account's inbox.
	ChildFolders(ctx context.Context) ([]Folder, error)
	// Messages returns messages in folder matching q, newest first.
	Messages(ctx context.Context, folder FolderID, q Query) ([]Message, error)
	// Attachments enumerates the file attachments of one message.
	Attachments(ctx context.Context, msg MessageID) ([]Attachment, error)
	// SaveAttachment downloads one attachment to path. On nil error the
	// file at path is complete; on error nothing usable is left behind.
	SaveAttachment(ctx context.Context, msg MessageID, att AttachmentID, path string) error
}

// Sender is the narrow submission surface.
type Sender interface {
	Probe(ctx context.Context) error
	// Send submits out exactly once. A nil error means the store accepted it.
	Send(ctx context.Context, out Outbound) error
}

// Store is a backend that supports both sides.
type Store interface {
	Mailbox
	Sender
}
