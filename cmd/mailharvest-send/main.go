package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joshsymonds/mailharvest/internal/config"
	"github.com/joshsymonds/mailharvest/internal/runtime"
	"github.com/joshsymonds/mailharvest/internal/send"
)

type sendConfig struct {
	configPath string
	backend    string
	to         string
	subject    string
	body       string
	bodyFile   string
	html       bool
	cc         string
	bcc        string
	attach     string
	embed      string
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailharvest-send failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() sendConfig {
	configPath := flag.String("config", "", "path to YAML config file (env vars still win)")
	backend := flag.String("backend", "", "mail store backend: graph, gmail, imap, or ses")
	to := flag.String("to", "", "recipient address")
	subject := flag.String("subject", "", "message subject")
	body := flag.String("body", "", "message body")
	bodyFile := flag.String("body-file", "", "read the message body from this file")
	html := flag.Bool("html", false, "treat the body as HTML")
	cc := flag.String("cc", "", "comma separated CC addresses")
	bcc := flag.String("bcc", "", "comma separated BCC addresses")
	attach := flag.String("attach", "", "comma separated attachment paths")
	embed := flag.String("embed", "", "comma separated image paths to embed inline (reference as cid:<filename>)")
	flag.Parse()

	return sendConfig{
		configPath: *configPath,
		backend:    *backend,
		to:         *to,
		subject:    *subject,
		body:       *body,
		bodyFile:   *bodyFile,
		html:       *html,
		cc:         *cc,
		bcc:        *bcc,
		attach:     *attach,
		embed:      *embed,
	}
}

func run(sc sendConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()
	cfg, err := loadConfig(sc.configPath)
	if err != nil {
		return err
	}
	if sc.backend != "" {
		cfg.Backend = strings.ToLower(sc.backend)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if sc.to == "" {
		return fmt.Errorf("-to is required")
	}

	body := sc.body
	if sc.bodyFile != "" {
		data, readErr := os.ReadFile(sc.bodyFile)
		if readErr != nil {
			return fmt.Errorf("read body file: %w", readErr)
		}
		body = string(data)
	}

	logger := runtime.NewLogger(cfg.Logging.Level)

	sender, err := runtime.NewSender(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create mail store: %w", err)
	}

	var attachments []send.Attachment
	for _, path := range splitList(sc.attach) {
		attachments = append(attachments, send.Attachment{Path: path})
	}

	svc := send.NewService(sender, logger)
	status := svc.Send(ctx, send.Message{
		To:             sc.to,
		Subject:        sc.subject,
		Body:           body,
		HTML:           sc.html,
		CC:             splitList(sc.cc),
		BCC:            splitList(sc.bcc),
		Attachments:    attachments,
		EmbeddedImages: splitList(sc.embed),
	})

	fmt.Println(status.Detail)
	if !status.OK {
		return fmt.Errorf("send failed")
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromFile(path)
}

func splitList(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
