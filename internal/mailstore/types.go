// internal/mailstore/types.go
package mailstore

import "time"

type FolderID string
type MessageID string
type AttachmentID string

type Folder struct {
	ID   FolderID
	Name string
}

type Message struct {
	ID             MessageID
	ConversationID string
	Subject        string
	From           string // SMTP address of the sender
	SenderName     string // display name, may be empty
	Body           string
	Received       time.Time
	Unread         bool
}

type Attachment struct {
	ID   AttachmentID
	Name string // filename declared by the message
}

// Query narrows a folder listing. SubjectContains is handed to the store's
// native filter syntax verbatim; a zero Since means no lower bound.
type Query struct {
	SubjectContains string
	Since           time.Time
}

// Outbound is a message to submit. Attachment content is already loaded;
// inline attachments carry the Content-ID referenced from an HTML body.
type Outbound struct {
	To          string
	CC          []string
	BCC         []string
	Subject     string
	Body        string
	HTML        bool
	Attachments []OutboundAttachment
}

type OutboundAttachment struct {
	Name      string
	Content   []byte
	Inline    bool
	ContentID string // set when Inline
}
