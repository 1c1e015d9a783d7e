// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the harvest and send commands.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultWorkers           = 4
	defaultRequestsPerSecond = 5
)

// Config holds the complete application configuration.
type Config struct {
	// Backend selects the mail store: graph, gmail, imap, or ses.
	Backend string        `yaml:"backend"`
	Graph   GraphConfig   `yaml:"graph"`
	Gmail   GmailConfig   `yaml:"gmail"`
	IMAP    IMAPConfig    `yaml:"imap"`
	SES     SESConfig     `yaml:"ses"`
	Harvest HarvestConfig `yaml:"harvest"`
	Logging LoggingConfig `yaml:"logging"`
}

// GraphConfig holds Microsoft Graph API credentials.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Mailbox      string `yaml:"mailbox"`
}

// GmailConfig holds the Gmail account and the directory the OAuth
// credential files live in.
type GmailConfig struct {
	Account        string `yaml:"account"`
	CredentialsDir string `yaml:"credentials_dir"`
}

// IMAPConfig holds the IMAP endpoint plus the SMTP submission endpoint.
type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	StartTLS bool   `yaml:"starttls"`
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
}

// SESConfig holds AWS SES v2 credentials. Access keys are optional;
// the SDK falls back to its default credential chain when they are empty.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
}

// HarvestConfig holds defaults for scan runs.
type HarvestConfig struct {
	OutputDir         string   `yaml:"output_dir"`
	AllowedTypes      []string `yaml:"allowed_types"`
	Workers           int      `yaml:"workers"`
	RequestsPerSecond int      `yaml:"requests_per_second"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	return cfg, nil
}

// Validate checks that the selected backend has everything it needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case "graph":
		if !c.GraphConfigured() {
			return fmt.Errorf("graph backend needs tenant_id, client_id, client_secret, and mailbox")
		}
	case "gmail":
		if !c.GmailConfigured() {
			return fmt.Errorf("gmail backend needs an account")
		}
	case "imap":
		if !c.IMAPConfigured() {
			return fmt.Errorf("imap backend needs host, username, and password")
		}
	case "ses":
		if !c.SESConfigured() {
			return fmt.Errorf("ses backend needs region and sender")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

// GraphConfigured returns true if all four Graph credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != "" &&
		c.Graph.Mailbox != ""
}

func (c *Config) GmailConfigured() bool {
	return c.Gmail.Account != ""
}

func (c *Config) IMAPConfigured() bool {
	return c.IMAP.Host != "" && c.IMAP.Username != "" && c.IMAP.Password != ""
}

func (c *Config) SESConfigured() bool {
	return c.SES.Region != "" && c.SES.Sender != ""
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Backend = "graph"
	c.Harvest.OutputDir = "attachments"
	c.Harvest.Workers = defaultWorkers
	c.Harvest.RequestsPerSecond = defaultRequestsPerSecond
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("MAILHARVEST_BACKEND"); v != "" {
		c.Backend = strings.ToLower(v)
	}

	if v := os.Getenv("GRAPH_TENANT_ID"); v != "" {
		c.Graph.TenantID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_ID"); v != "" {
		c.Graph.ClientID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_SECRET"); v != "" {
		c.Graph.ClientSecret = v
	}
	if v := os.Getenv("GRAPH_MAILBOX"); v != "" {
		c.Graph.Mailbox = v
	}

	if v := os.Getenv("GMAIL_ACCOUNT"); v != "" {
		c.Gmail.Account = v
	}
	if v := os.Getenv("GMAIL_CREDENTIALS_DIR"); v != "" {
		c.Gmail.CredentialsDir = v
	}

	if v := os.Getenv("IMAP_HOST"); v != "" {
		c.IMAP.Host = v
	}
	if v := os.Getenv("IMAP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.IMAP.Port = port
		}
	}
	if v := os.Getenv("IMAP_USERNAME"); v != "" {
		c.IMAP.Username = v
	}
	if v := os.Getenv("IMAP_PASSWORD"); v != "" {
		c.IMAP.Password = v
	}
	if v := os.Getenv("IMAP_STARTTLS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.IMAP.StartTLS = b
		}
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.IMAP.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.IMAP.SMTPPort = port
		}
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}
	if v := os.Getenv("SES_SENDER"); v != "" {
		c.SES.Sender = v
	}

	if v := os.Getenv("HARVEST_OUTPUT_DIR"); v != "" {
		c.Harvest.OutputDir = v
	}
	if v := os.Getenv("HARVEST_ALLOWED_TYPES"); v != "" {
		c.Harvest.AllowedTypes = splitList(v)
	}
	if v := os.Getenv("HARVEST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Harvest.Workers = n
		}
	}
	if v := os.Getenv("HARVEST_RPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Harvest.RequestsPerSecond = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
