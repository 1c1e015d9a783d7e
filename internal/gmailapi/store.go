// Package gmailapi adapts a *gmail.Service to the mailstore interfaces.
// Gmail has no folder tree; labels stand in for folders and a message's
// read state is the absence of the UNREAD label.
package gmailapi

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/joshsymonds/mailharvest/internal/mailstore"
	"github.com/joshsymonds/mailharvest/internal/rfc822"
)

const messagePageSize = 100

// Store speaks to one Gmail account through the users.* endpoints.
type Store struct {
	svc     *gmail.Service
	account string
}

var _ mailstore.Store = (*Store)(nil)

// New wraps an authenticated Gmail service. account is the address used
// as the From header on outbound mail; Gmail rewrites it if it does not
// match the authenticated user.
func New(svc *gmail.Service, account string) *Store {
	return &Store{svc: svc, account: account}
}

func (s *Store) Probe(ctx context.Context) error {
	_, err := s.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get gmail profile: %w", err)
	}
	return nil
}

func (s *Store) ChildFolders(ctx context.Context) ([]mailstore.Folder, error) {
	res, err := s.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	folders := make([]mailstore.Folder, 0, len(res.Labels))
	for _, l := range res.Labels {
		folders = append(folders, mailstore.Folder{
			ID:   mailstore.FolderID(l.Id),
			Name: l.Name,
		})
	}
	return folders, nil
}

func (s *Store) Messages(ctx context.Context, folder mailstore.FolderID, q mailstore.Query) ([]mailstore.Message, error) {
	var msgs []mailstore.Message
	pageToken := ""
	for {
		call := s.svc.Users.Messages.List("me").
			LabelIds(string(folder)).
			Q(buildQuery(q)).
			MaxResults(messagePageSize)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		for _, stub := range res.Messages {
			msg, err := s.getMessage(ctx, stub.Id)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}
		if res.NextPageToken == "" {
			return msgs, nil
		}
		pageToken = res.NextPageToken
	}
}

func (s *Store) getMessage(ctx context.Context, id string) (mailstore.Message, error) {
	full, err := s.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return mailstore.Message{}, fmt.Errorf("get message %s: %w", id, err)
	}
	from, senderName := fromHeader(full.Payload)
	return mailstore.Message{
		ID:             mailstore.MessageID(full.Id),
		ConversationID: full.ThreadId,
		Subject:        header(full.Payload, "Subject"),
		From:           from,
		SenderName:     senderName,
		Body:           bodyText(full.Payload),
		Received:       time.UnixMilli(full.InternalDate).UTC(),
		Unread:         hasLabel(full.LabelIds, "UNREAD"),
	}, nil
}

func (s *Store) Attachments(ctx context.Context, msg mailstore.MessageID) ([]mailstore.Attachment, error) {
	full, err := s.svc.Users.Messages.Get("me", string(msg)).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", msg, err)
	}
	return collectAttachments(full.Payload), nil
}

// SaveAttachment writes the decoded attachment to path. The file appears
// only once fully written; a failed download leaves nothing behind.
func (s *Store) SaveAttachment(ctx context.Context, msg mailstore.MessageID, att mailstore.AttachmentID, path string) error {
	body, err := s.svc.Users.Messages.Attachments.Get("me", string(msg), string(att)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get attachment %s: %w", att, err)
	}
	content, err := decodeBase64URL(body.Data)
	if err != nil {
		return fmt.Errorf("decode attachment %s: %w", att, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write attachment %s: %w", att, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close attachment file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) Send(ctx context.Context, out mailstore.Outbound) error {
	raw, err := rfc822.Build(s.account, out, true)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	_, err = s.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.RawURLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// buildQuery renders a Query in Gmail search syntax. Embedded double
// quotes would terminate the subject term early, so they are dropped.
func buildQuery(q mailstore.Query) string {
	var terms []string
	if q.SubjectContains != "" {
		subject := strings.ReplaceAll(q.SubjectContains, `"`, "")
		terms = append(terms, fmt.Sprintf("subject:%q", subject))
	}
	if !q.Since.IsZero() {
		terms = append(terms, fmt.Sprintf("after:%d", q.Since.Unix()))
	}
	return strings.Join(terms, " ")
}

func header(part *gmail.MessagePart, name string) string {
	if part == nil {
		return ""
	}
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func fromHeader(part *gmail.MessagePart) (address, name string) {
	raw := header(part, "From")
	if raw == "" {
		return "", ""
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return raw, ""
	}
	return addr.Address, addr.Name
}

// bodyText returns the first text/plain part, falling back to text/html.
func bodyText(part *gmail.MessagePart) string {
	if text := findBody(part, "text/plain"); text != "" {
		return text
	}
	return findBody(part, "text/html")
}

func findBody(part *gmail.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if part.MimeType == mimeType && part.Filename == "" && part.Body != nil && part.Body.Data != "" {
		decoded, err := decodeBase64URL(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	for _, child := range part.Parts {
		if text := findBody(child, mimeType); text != "" {
			return text
		}
	}
	return ""
}

// collectAttachments walks the part tree for named parts stored
// server-side. Inline images carry a filename too, so they are listed
// like any other attachment.
func collectAttachments(part *gmail.MessagePart) []mailstore.Attachment {
	if part == nil {
		return nil
	}
	var atts []mailstore.Attachment
	if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
		atts = append(atts, mailstore.Attachment{
			ID:   mailstore.AttachmentID(part.Body.AttachmentId),
			Name: part.Filename,
		})
	}
	for _, child := range part.Parts {
		atts = append(atts, collectAttachments(child)...)
	}
	return atts
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}

// decodeBase64URL handles Gmail's web-safe base64, which arrives both
// with and without padding depending on the endpoint.
func decodeBase64URL(data string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}
