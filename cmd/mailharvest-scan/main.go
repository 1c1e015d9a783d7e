package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/joshsymonds/mailharvest/internal/config"
	"github.com/joshsymonds/mailharvest/internal/harvest"
	"github.com/joshsymonds/mailharvest/internal/rate"
	"github.com/joshsymonds/mailharvest/internal/runtime"
)

const hoursPerDay = 24

type scanConfig struct {
	configPath  string
	backend     string
	account     string
	folder      string
	subject     string
	days        int
	since       string
	includeRead bool
	outputDir   string
	types       string
	workers     int
	rps         int
	jsonOut     string
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailharvest-scan failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() scanConfig {
	configPath := flag.String("config", "", "path to YAML config file (env vars still win)")
	backend := flag.String("backend", "", "mail store backend: graph, gmail, or imap")
	account := flag.String("account", "", "mailbox account to scan (defaults to the backend's account)")
	folder := flag.String("folder", "", "folder under the inbox to scan")
	subject := flag.String("subject", "", "only messages whose subject contains this text")
	days := flag.Int("days", 7, "lookback window in days (0 = no limit)")
	since := flag.String("since", "", "only messages received at or after this RFC 3339 time (overrides -days)")
	includeRead := flag.Bool("include-read", false, "include messages that are already read")
	out := flag.String("out", "", "directory attachments are saved to")
	typesFlag := flag.String("types", "", "comma separated attachment extensions to keep (empty = all)")
	workers := flag.Int("workers", 0, "concurrent attachment downloads per message")
	rps := flag.Int("rps", 0, "max store requests per second")
	jsonOut := flag.String("json", "", "write the records JSON to path")
	flag.Parse()

	return scanConfig{
		configPath:  *configPath,
		backend:     *backend,
		account:     *account,
		folder:      *folder,
		subject:     *subject,
		days:        *days,
		since:       *since,
		includeRead: *includeRead,
		outputDir:   *out,
		types:       *typesFlag,
		workers:     *workers,
		rps:         *rps,
		jsonOut:     *jsonOut,
	}
}

func run(sc scanConfig) error {
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
	if sc.folder == "" {
		return fmt.Errorf("-folder is required")
	}

	logger := runtime.NewLogger(cfg.Logging.Level)

	store, err := runtime.NewMailbox(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create mail store: %w", err)
	}

	var (
		limiter rate.Limiter
		bucket  *rate.TokenBucket
	)
	rps := sc.rps
	if rps == 0 {
		rps = cfg.Harvest.RequestsPerSecond
	}
	if rps > 0 {
		bucket = rate.NewTokenBucket(rps)
		limiter = bucket
		defer bucket.Stop()
	}

	svc := harvest.NewService(store, limiter, logger)

	since, err := resolveSince(sc.since, sc.days)
	if err != nil {
		return err
	}
	records, err := svc.Scan(ctx, buildSpec(sc, cfg, since))
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	if printErr := harvest.PrintHuman(records, os.Stdout); printErr != nil {
		return fmt.Errorf("print report: %w", printErr)
	}
	if sc.jsonOut == "" {
		return nil
	}
	if writeErr := harvest.WriteJSON(records, sc.jsonOut); writeErr != nil {
		return fmt.Errorf("write json: %w", writeErr)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromFile(path)
}

// resolveSince turns -since, or failing that the -days lookback, into
// the received-time lower bound. Zero means no bound.
func resolveSince(stamp string, days int) (time.Time, error) {
	if stamp != "" {
		t, err := time.Parse(time.RFC3339, stamp)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse -since: %w", err)
		}
		return t, nil
	}
	if days > 0 {
		return time.Now().Add(-time.Duration(days) * hoursPerDay * time.Hour), nil
	}
	return time.Time{}, nil
}

func buildSpec(sc scanConfig, cfg *config.Config, since time.Time) harvest.Spec {
	outputDir := sc.outputDir
	if outputDir == "" {
		outputDir = cfg.Harvest.OutputDir
	}
	workers := sc.workers
	if workers == 0 {
		workers = cfg.Harvest.Workers
	}
	types := cfg.Harvest.AllowedTypes
	if sc.types != "" {
		types = splitList(sc.types)
	}

	return harvest.Spec{
		Account:         defaultAccount(sc.account, cfg),
		Folder:          sc.folder,
		SubjectContains: sc.subject,
		Since:           since,
		IncludeRead:     sc.includeRead,
		OutputDir:       outputDir,
		AllowedTypes:    normalizeTypes(types),
		Workers:         workers,
	}
}

func defaultAccount(account string, cfg *config.Config) string {
	if account != "" {
		return account
	}
	switch cfg.Backend {
	case "graph":
		return cfg.Graph.Mailbox
	case "gmail":
		return cfg.Gmail.Account
	case "imap":
		return cfg.IMAP.Username
	}
	return ""
}

// normalizeTypes lets users write "pdf" or ".pdf" interchangeably. The
// matching itself stays case sensitive.
func normalizeTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, ".") {
			t = "." + t
		}
		out = append(out, t)
	}
	return out
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
