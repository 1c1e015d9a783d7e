package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"github.com/joshsymonds/mailharvest/internal/mailstore"
	"github.com/joshsymonds/mailharvest/internal/rfc822"
)

// Send submits the message over SMTP. BCC recipients ride only on the
// envelope, never in the headers.
func (s *Store) Send(ctx context.Context, out mailstore.Outbound) error {
	raw, err := rfc822.Build(s.cfg.Username, out, false)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	recipients := make([]string, 0, 1+len(out.CC)+len(out.BCC))
	recipients = append(recipients, out.To)
	recipients = append(recipients, out.CC...)
	recipients = append(recipients, out.BCC...)
	return s.submit(ctx, recipients, raw)
}

func (s *Store) submit(ctx context.Context, recipients []string, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	host := s.cfg.SMTPHost
	addr := net.JoinHostPort(host, strconv.Itoa(s.cfg.SMTPPort))

	var client *smtp.Client
	if s.cfg.SMTPPort == 465 {
		// Implicit TLS.
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
		if err != nil {
			return fmt.Errorf("smtp tls dial: %w", err)
		}
		client, err = smtp.NewClient(conn, host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp client: %w", err)
		}
	} else {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return fmt.Errorf("smtp dial: %w", err)
		}
		client, err = smtp.NewClient(conn, host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp client: %w", err)
		}
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			client.Close()
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	defer client.Close()

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(s.cfg.Username); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return client.Quit()
}
