// Package imap backs the mailstore interfaces with an IMAP mailbox for
// reading and an SMTP submission endpoint for sending. Each operation
// dials a fresh connection and logs out when done.
package imap

import (
	"context"
	"fmt"
	"mime"
	"net"
	"sort"
	"strconv"
	"strings"

	goimap "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/charset"

	"github.com/joshsymonds/mailharvest/internal/mailstore"
)

// Config carries the IMAP endpoint plus the submission endpoint used
// for outbound mail. SMTPHost defaults to Host when empty.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// StartTLS dials in the clear and upgrades, for servers on 143.
	// The default is implicit TLS on 993.
	StartTLS bool
	SMTPHost string
	SMTPPort int
}

type Store struct {
	cfg Config
}

var _ mailstore.Store = (*Store)(nil)

func New(cfg Config) *Store {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.SMTPHost == "" {
		cfg.SMTPHost = cfg.Host
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 465
	}
	return &Store{cfg: cfg}
}

func (s *Store) connect(ctx context.Context) (*imapclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	options := &imapclient.Options{
		WordDecoder: &mime.WordDecoder{CharsetReader: charset.Reader},
	}
	var c *imapclient.Client
	var err error
	if s.cfg.StartTLS {
		c, err = imapclient.DialStartTLS(addr, options)
	} else {
		c, err = imapclient.DialTLS(addr, options)
	}
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", addr, err)
	}
	if err := c.Login(s.cfg.Username, s.cfg.Password).Wait(); err != nil {
		_ = c.Logout().Wait()
		return nil, fmt.Errorf("imap login as %s: %w", s.cfg.Username, err)
	}
	return c, nil
}

func logout(c *imapclient.Client) { _ = c.Logout().Wait() }

func (s *Store) Probe(ctx context.Context) error {
	c, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer logout(c)
	if err := c.Noop().Wait(); err != nil {
		return fmt.Errorf("imap noop: %w", err)
	}
	return nil
}

func (s *Store) ChildFolders(ctx context.Context) ([]mailstore.Folder, error) {
	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer logout(c)

	boxes, err := c.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("list mailboxes: %w", err)
	}
	folders := make([]mailstore.Folder, 0, len(boxes))
	for _, b := range boxes {
		folders = append(folders, mailstore.Folder{
			ID:   mailstore.FolderID(b.Mailbox),
			Name: leafName(b.Mailbox, b.Delim),
		})
	}
	return folders, nil
}

func (s *Store) Messages(ctx context.Context, folder mailstore.FolderID, q mailstore.Query) ([]mailstore.Message, error) {
	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer logout(c)

	if _, err := c.Select(string(folder), &goimap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("select %s: %w", folder, err)
	}

	criteria := &goimap.SearchCriteria{}
	if q.SubjectContains != "" {
		criteria.Header = append(criteria.Header, goimap.SearchCriteriaHeaderField{
			Key: "Subject", Value: q.SubjectContains,
		})
	}
	if !q.Since.IsZero() {
		criteria.Since = q.Since
	}
	data, err := c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", folder, err)
	}
	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	section := &goimap.FetchItemBodySection{Peek: true}
	bufs, err := c.Fetch(goimap.UIDSetNum(uids...), &goimap.FetchOptions{
		Envelope:     true,
		Flags:        true,
		UID:          true,
		InternalDate: true,
		BodySection:  []*goimap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	msgs := make([]mailstore.Message, 0, len(bufs))
	for _, buf := range bufs {
		msg := toMessage(string(folder), buf, buf.FindBodySection(section))
		// SINCE is day-granular on the server; trim to the exact cutoff here.
		if !q.Since.IsZero() && msg.Received.Before(q.Since) {
			continue
		}
		msgs = append(msgs, msg)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Received.After(msgs[j].Received) })
	return msgs, nil
}

func (s *Store) Attachments(ctx context.Context, msg mailstore.MessageID) ([]mailstore.Attachment, error) {
	mailbox, uid, err := splitMessageID(msg)
	if err != nil {
		return nil, err
	}
	raw, err := s.fetchRaw(ctx, mailbox, uid)
	if err != nil {
		return nil, err
	}
	parts := parseMessage(raw).attachments
	atts := make([]mailstore.Attachment, 0, len(parts))
	for i, p := range parts {
		atts = append(atts, mailstore.Attachment{
			ID:   mailstore.AttachmentID(strconv.Itoa(i)),
			Name: p.name,
		})
	}
	return atts, nil
}

// SaveAttachment writes the decoded attachment to path. The file appears
// only once fully written; a failed fetch leaves nothing behind.
func (s *Store) SaveAttachment(ctx context.Context, msg mailstore.MessageID, att mailstore.AttachmentID, path string) error {
	mailbox, uid, err := splitMessageID(msg)
	if err != nil {
		return err
	}
	idx, err := strconv.Atoi(string(att))
	if err != nil {
		return fmt.Errorf("malformed attachment id %q", att)
	}
	raw, err := s.fetchRaw(ctx, mailbox, uid)
	if err != nil {
		return err
	}
	parts := parseMessage(raw).attachments
	if idx < 0 || idx >= len(parts) {
		return fmt.Errorf("message %s has no attachment %s", msg, att)
	}
	return writeFileAtomic(path, parts[idx].content)
}

func (s *Store) fetchRaw(ctx context.Context, mailbox string, uid goimap.UID) ([]byte, error) {
	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer logout(c)

	if _, err := c.Select(mailbox, &goimap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("select %s: %w", mailbox, err)
	}
	section := &goimap.FetchItemBodySection{Peek: true}
	bufs, err := c.Fetch(goimap.UIDSetNum(uid), &goimap.FetchOptions{
		UID:         true,
		BodySection: []*goimap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch message %d: %w", uid, err)
	}
	if len(bufs) == 0 {
		return nil, fmt.Errorf("message %d not found in %s", uid, mailbox)
	}
	raw := bufs[0].FindBodySection(section)
	if raw == nil {
		return nil, fmt.Errorf("message %d has no body", uid)
	}
	return raw, nil
}

func toMessage(mailbox string, buf *imapclient.FetchMessageBuffer, raw []byte) mailstore.Message {
	msg := mailstore.Message{
		ID:       messageID(mailbox, buf.UID),
		Received: buf.InternalDate,
		Unread:   !hasFlag(buf.Flags, goimap.FlagSeen),
	}
	if env := buf.Envelope; env != nil {
		// IMAP has no conversation threading; the Message-ID header stands in.
		msg.ConversationID = env.MessageID
		msg.Subject = env.Subject
		if len(env.From) > 0 {
			msg.From = env.From[0].Addr()
			msg.SenderName = env.From[0].Name
		}
		if msg.Received.IsZero() {
			msg.Received = env.Date
		}
	}
	if raw != nil {
		p := parseMessage(raw)
		msg.Body = p.text
		if msg.Body == "" {
			msg.Body = p.html
		}
	}
	return msg
}

// UIDs are only meaningful within a mailbox, so message IDs carry both.
func messageID(mailbox string, uid goimap.UID) mailstore.MessageID {
	return mailstore.MessageID(fmt.Sprintf("%s\x1f%d", mailbox, uid))
}

func splitMessageID(id mailstore.MessageID) (string, goimap.UID, error) {
	mailbox, rest, ok := strings.Cut(string(id), "\x1f")
	if !ok {
		return "", 0, fmt.Errorf("malformed message id %q", id)
	}
	uid, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("malformed message id %q", id)
	}
	return mailbox, goimap.UID(uid), nil
}

func leafName(mailbox string, delim rune) string {
	if delim == 0 {
		return mailbox
	}
	if i := strings.LastIndex(mailbox, string(delim)); i >= 0 {
		return mailbox[i+1:]
	}
	return mailbox
}

func hasFlag(flags []goimap.Flag, want goimap.Flag) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
