// Package rfc822 renders outbound messages as raw RFC 822 bytes for
// stores that accept whole messages (Gmail raw send, SMTP submission,
// SES raw content).
package rfc822

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/joshsymonds/mailharvest/internal/mailstore"
)

// Build renders out as a raw message from the given sender. A Bcc header
// is written only when headerBcc is set; SMTP submission omits it and
// carries those recipients in the envelope, while API stores that route
// from headers need it present.
func Build(from string, out mailstore.Outbound, headerBcc bool) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", out.To)
	if len(out.CC) > 0 {
		fmt.Fprintf(&buf, "Cc: %s\r\n", strings.Join(out.CC, ", "))
	}
	if headerBcc && len(out.BCC) > 0 {
		fmt.Fprintf(&buf, "Bcc: %s\r\n", strings.Join(out.BCC, ", "))
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", out.Subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")

	if len(out.Attachments) == 0 {
		fmt.Fprintf(&buf, "Content-Type: %s; charset=UTF-8\r\n\r\n", bodyType(out.HTML))
		buf.WriteString(out.Body)
		return buf.Bytes(), nil
	}

	var inline, regular []mailstore.OutboundAttachment
	for _, att := range out.Attachments {
		if att.Inline {
			inline = append(inline, att)
		} else {
			regular = append(regular, att)
		}
	}

	mixed := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mixed.Boundary())

	if len(inline) > 0 {
		if err := writeRelated(mixed, out, inline); err != nil {
			return nil, err
		}
	} else if err := writeBody(mixed, out); err != nil {
		return nil, err
	}

	for _, att := range regular {
		if err := writeAttachment(mixed, att); err != nil {
			return nil, err
		}
	}

	if err := mixed.Close(); err != nil {
		return nil, fmt.Errorf("close multipart message: %w", err)
	}
	return buf.Bytes(), nil
}

func writeBody(w *multipart.Writer, out mailstore.Outbound) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", bodyType(out.HTML)+"; charset=UTF-8")
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create body part: %w", err)
	}
	if _, err := part.Write([]byte(out.Body)); err != nil {
		return fmt.Errorf("write body part: %w", err)
	}
	return nil
}

// writeRelated wraps the body and its inline images in a multipart/related
// container so HTML cid: references resolve.
func writeRelated(w *multipart.Writer, out mailstore.Outbound, inline []mailstore.OutboundAttachment) error {
	var inner bytes.Buffer
	related := multipart.NewWriter(&inner)

	if err := writeBody(related, out); err != nil {
		return err
	}
	for _, att := range inline {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Type", contentTypeFor(att.Name))
		h.Set("Content-Transfer-Encoding", "base64")
		h.Set("Content-ID", "<"+att.ContentID+">")
		h.Set("Content-Disposition",
			fmt.Sprintf("inline; filename=%s", mime.QEncoding.Encode("UTF-8", att.Name)))
		part, err := related.CreatePart(h)
		if err != nil {
			return fmt.Errorf("create inline part %s: %w", att.Name, err)
		}
		if _, err := part.Write([]byte(encodeBase64WithLineBreaks(att.Content))); err != nil {
			return fmt.Errorf("write inline part %s: %w", att.Name, err)
		}
	}
	if err := related.Close(); err != nil {
		return fmt.Errorf("close related container: %w", err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", fmt.Sprintf("multipart/related; boundary=%q", related.Boundary()))
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create related part: %w", err)
	}
	if _, err := io.Copy(part, &inner); err != nil {
		return fmt.Errorf("write related part: %w", err)
	}
	return nil
}

func writeAttachment(w *multipart.Writer, att mailstore.OutboundAttachment) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", contentTypeFor(att.Name))
	h.Set("Content-Transfer-Encoding", "base64")
	h.Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s", mime.QEncoding.Encode("UTF-8", att.Name)))
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create attachment part %s: %w", att.Name, err)
	}
	if _, err := part.Write([]byte(encodeBase64WithLineBreaks(att.Content))); err != nil {
		return fmt.Errorf("write attachment part %s: %w", att.Name, err)
	}
	return nil
}

func bodyType(html bool) string {
	if html {
		return "text/html"
	}
	return "text/plain"
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// encodeBase64WithLineBreaks encodes bytes to base64 with 76-character line
// breaks per RFC 2045.
func encodeBase64WithLineBreaks(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var lines []string
	for i := 0; i < len(encoded); i += 76 {
		end := i + 76
		if end > len(encoded) {
			end = len(encoded)
		}
		lines = append(lines, encoded[i:end])
	}
	return strings.Join(lines, "\r\n")
}
