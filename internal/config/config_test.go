package config

import (
	"os"
	"path/filepath"
	"testing"
)

var allEnvVars = []string{
	"MAILHARVEST_BACKEND",
	"GRAPH_TENANT_ID", "GRAPH_CLIENT_ID", "GRAPH_CLIENT_SECRET", "GRAPH_MAILBOX",
	"GMAIL_ACCOUNT", "GMAIL_CREDENTIALS_DIR",
	"IMAP_HOST", "IMAP_PORT", "IMAP_USERNAME", "IMAP_PASSWORD", "IMAP_STARTTLS",
	"SMTP_HOST", "SMTP_PORT",
	"SES_REGION", "SES_ACCESS_KEY_ID", "SES_SECRET_ACCESS_KEY", "SES_SENDER",
	"HARVEST_OUTPUT_DIR", "HARVEST_ALLOWED_TYPES", "HARVEST_WORKERS", "HARVEST_RPS",
	"LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range allEnvVars {
		t.Setenv(env, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Backend != "graph" {
		t.Errorf("Backend: got %q, want %q", cfg.Backend, "graph")
	}
	if cfg.Harvest.OutputDir != "attachments" {
		t.Errorf("Harvest.OutputDir: got %q, want %q", cfg.Harvest.OutputDir, "attachments")
	}
	if cfg.Harvest.Workers != 4 {
		t.Errorf("Harvest.Workers: got %d, want 4", cfg.Harvest.Workers)
	}
	if cfg.Harvest.RequestsPerSecond != 5 {
		t.Errorf("Harvest.RequestsPerSecond: got %d, want 5", cfg.Harvest.RequestsPerSecond)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Graph.TenantID != "" {
		t.Errorf("Graph.TenantID: got %q, want empty", cfg.Graph.TenantID)
	}
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAILHARVEST_BACKEND", "IMAP")
	t.Setenv("IMAP_HOST", "mail.example.com")
	t.Setenv("IMAP_PORT", "143")
	t.Setenv("IMAP_USERNAME", "robot")
	t.Setenv("IMAP_PASSWORD", "secret123")
	t.Setenv("IMAP_STARTTLS", "true")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("HARVEST_OUTPUT_DIR", "/srv/attachments")
	t.Setenv("HARVEST_ALLOWED_TYPES", ".pdf, .xlsx")
	t.Setenv("HARVEST_WORKERS", "8")
	t.Setenv("HARVEST_RPS", "2")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Backend != "imap" {
		t.Errorf("Backend: got %q, want %q", cfg.Backend, "imap")
	}
	if cfg.IMAP.Host != "mail.example.com" {
		t.Errorf("IMAP.Host: got %q, want %q", cfg.IMAP.Host, "mail.example.com")
	}
	if cfg.IMAP.Port != 143 {
		t.Errorf("IMAP.Port: got %d, want 143", cfg.IMAP.Port)
	}
	if !cfg.IMAP.StartTLS {
		t.Errorf("IMAP.StartTLS: got false, want true")
	}
	if cfg.IMAP.SMTPHost != "smtp.example.com" || cfg.IMAP.SMTPPort != 587 {
		t.Errorf("SMTP endpoint: got %s:%d", cfg.IMAP.SMTPHost, cfg.IMAP.SMTPPort)
	}
	if cfg.Harvest.OutputDir != "/srv/attachments" {
		t.Errorf("Harvest.OutputDir: got %q", cfg.Harvest.OutputDir)
	}
	if len(cfg.Harvest.AllowedTypes) != 2 || cfg.Harvest.AllowedTypes[0] != ".pdf" || cfg.Harvest.AllowedTypes[1] != ".xlsx" {
		t.Errorf("Harvest.AllowedTypes: got %v", cfg.Harvest.AllowedTypes)
	}
	if cfg.Harvest.Workers != 8 {
		t.Errorf("Harvest.Workers: got %d, want 8", cfg.Harvest.Workers)
	}
	if cfg.Harvest.RequestsPerSecond != 2 {
		t.Errorf("Harvest.RequestsPerSecond: got %d, want 2", cfg.Harvest.RequestsPerSecond)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	content := `
backend: graph
graph:
  tenant_id: tid-123
  client_id: cid-456
  client_secret: csecret-789
  mailbox: robot@example.com
harvest:
  output_dir: /data/files
  allowed_types: [".pdf"]
  workers: 2
logging:
  level: warn
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Graph.TenantID != "tid-123" {
		t.Errorf("Graph.TenantID: got %q, want %q", cfg.Graph.TenantID, "tid-123")
	}
	if cfg.Graph.Mailbox != "robot@example.com" {
		t.Errorf("Graph.Mailbox: got %q", cfg.Graph.Mailbox)
	}
	if cfg.Harvest.OutputDir != "/data/files" {
		t.Errorf("Harvest.OutputDir: got %q", cfg.Harvest.OutputDir)
	}
	if cfg.Harvest.Workers != 2 {
		t.Errorf("Harvest.Workers: got %d, want 2", cfg.Harvest.Workers)
	}
	// Defaults survive for fields the file does not mention.
	if cfg.Harvest.RequestsPerSecond != 5 {
		t.Errorf("Harvest.RequestsPerSecond: got %d, want 5", cfg.Harvest.RequestsPerSecond)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "warn")
	}
}

func TestLoadFromFile_EnvStillWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("GRAPH_MAILBOX", "override@example.com")

	content := `
graph:
  mailbox: file@example.com
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Graph.Mailbox != "override@example.com" {
		t.Errorf("Graph.Mailbox: got %q, want env override", cfg.Graph.Mailbox)
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name: "graph complete",
			mutate: func(c *Config) {
				c.Backend = "graph"
				c.Graph = GraphConfig{
					TenantID: "t", ClientID: "c", ClientSecret: "s", Mailbox: "m@example.com",
				}
			},
		},
		{
			name:    "graph incomplete",
			mutate:  func(c *Config) { c.Backend = "graph" },
			wantErr: true,
		},
		{
			name: "gmail",
			mutate: func(c *Config) {
				c.Backend = "gmail"
				c.Gmail.Account = "robot@example.com"
			},
		},
		{
			name: "imap",
			mutate: func(c *Config) {
				c.Backend = "imap"
				c.IMAP = IMAPConfig{Host: "mail.example.com", Username: "u", Password: "p"}
			},
		},
		{
			name: "ses",
			mutate: func(c *Config) {
				c.Backend = "ses"
				c.SES = SESConfig{Region: "us-east-1", Sender: "robot@example.com"}
			},
		},
		{
			name:    "ses incomplete",
			mutate:  func(c *Config) { c.Backend = "ses"; c.SES.Region = "us-east-1" },
			wantErr: true,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Backend = "carrier-pigeon" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
