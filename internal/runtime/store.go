// internal/runtime/store.go — maps config onto a concrete mail store
package runtime

import (
	"context"
	"fmt"

	"github.com/joshsymonds/mailharvest/internal/config"
	"github.com/joshsymonds/mailharvest/internal/gmailapi"
	"github.com/joshsymonds/mailharvest/internal/graph"
	"github.com/joshsymonds/mailharvest/internal/imap"
	"github.com/joshsymonds/mailharvest/internal/mailstore"
	"github.com/joshsymonds/mailharvest/internal/ses"
)

// NewMailbox builds the reading side of the configured backend. SES is
// send-only and is rejected here.
func NewMailbox(ctx context.Context, cfg *config.Config) (mailstore.Mailbox, error) {
	switch cfg.Backend {
	case "graph":
		return newGraphStore(cfg), nil
	case "gmail":
		svc, err := gmailService(ctx, cfg, ScopeReadonly)
		if err != nil {
			return nil, fmt.Errorf("authenticate gmail: %w", err)
		}
		return gmailapi.New(svc, cfg.Gmail.Account), nil
	case "imap":
		return newIMAPStore(cfg), nil
	case "ses":
		return nil, fmt.Errorf("ses backend cannot read mail; use graph, gmail, or imap")
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// NewSender builds the sending side of the configured backend.
func NewSender(ctx context.Context, cfg *config.Config) (mailstore.Sender, error) {
	switch cfg.Backend {
	case "graph":
		return newGraphStore(cfg), nil
	case "gmail":
		svc, err := gmailService(ctx, cfg, ScopeSend)
		if err != nil {
			return nil, fmt.Errorf("authenticate gmail: %w", err)
		}
		return gmailapi.New(svc, cfg.Gmail.Account), nil
	case "imap":
		return newIMAPStore(cfg), nil
	case "ses":
		sender, err := ses.New(ctx, ses.Config{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			Sender:          cfg.SES.Sender,
		})
		if err != nil {
			return nil, fmt.Errorf("create ses sender: %w", err)
		}
		return sender, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func newGraphStore(cfg *config.Config) *graph.Store {
	return graph.New(graph.Config{
		TenantID:     cfg.Graph.TenantID,
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		Mailbox:      cfg.Graph.Mailbox,
	})
}

func newIMAPStore(cfg *config.Config) *imap.Store {
	return imap.New(imap.Config{
		Host:     cfg.IMAP.Host,
		Port:     cfg.IMAP.Port,
		Username: cfg.IMAP.Username,
		Password: cfg.IMAP.Password,
		StartTLS: cfg.IMAP.StartTLS,
		SMTPHost: cfg.IMAP.SMTPHost,
		SMTPPort: cfg.IMAP.SMTPPort,
	})
}
