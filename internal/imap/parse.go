package imap

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-message/mail"
)

type parsedMessage struct {
	text        string
	html        string
	attachments []attachmentPart
}

type attachmentPart struct {
	name    string
	content []byte
}

// parseMessage walks a raw RFC 5322 message for its text bodies and
// attachment parts. A message that fails to parse is treated as plain
// text so the caller still gets something to show.
func parseMessage(raw []byte) parsedMessage {
	var p parsedMessage
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		p.text = string(raw)
		return p
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain") && p.text == "":
				p.text = string(body)
			case strings.HasPrefix(contentType, "text/html") && p.html == "":
				p.html = string(body)
			}
		case *mail.AttachmentHeader:
			name, _ := h.Filename()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			p.attachments = append(p.attachments, attachmentPart{name: name, content: body})
		}
	}
	return p
}

func writeFileAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
