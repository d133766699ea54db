package config

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"
)

// SMTPConfig represents the email notification channel
type SMTPConfig struct {
	Enabled     bool              `mapstructure:"enabled"`
	Username    string            `mapstructure:"username"`
	AppPassword string            `mapstructure:"app_password"`
	From        string            `mapstructure:"from"`
	To          string            `mapstructure:"to"`
	Server      string            `mapstructure:"server"`
	Port        int               `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	UseTLS      bool              `mapstructure:"use_tls"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	Templates   map[string]string `mapstructure:"templates"`
}

// WebhookConfig represents the webhook notification channel
type WebhookConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Secret  string            `mapstructure:"secret"`
	Timeout time.Duration     `mapstructure:"timeout"`
	Headers map[string]string `mapstructure:"headers"`
}

// CloudflareConfig represents the DNS record channel, which points an A or
// AAAA record at every newly recorded address
type CloudflareConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	APIToken string        `mapstructure:"api_token"`
	ZoneID   string        `mapstructure:"zone_id"` // looked up from Record when empty
	Record   string        `mapstructure:"record"`
	TTL      int           `mapstructure:"ttl" validate:"gte=0"`
	Proxied  bool          `mapstructure:"proxied"`
	Comment  string        `mapstructure:"comment"`
	Timeout  time.Duration `mapstructure:"timeout"`
	BaseURL  string        `mapstructure:"base_url"`
}

// Validate validates email configuration
func (cfg *SMTPConfig) Validate() error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Server == "" {
		return fmt.Errorf("server is required")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.From == "" {
		return fmt.Errorf("sender address is required")
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return fmt.Errorf("invalid sender address %s: %w", cfg.From, err)
	}
	if cfg.To == "" {
		return fmt.Errorf("recipient address is required")
	}
	if _, err := mail.ParseAddress(cfg.To); err != nil {
		return fmt.Errorf("invalid recipient address %s: %w", cfg.To, err)
	}
	if cfg.Username != "" && cfg.AppPassword == "" {
		return fmt.Errorf("app_password is required when username is set")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return nil
}

// Validate validates webhook configuration
func (cfg *WebhookConfig) Validate() error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.URL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %s must use http(s)", cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return nil
}

// Validate validates cloudflare configuration
func (cfg *CloudflareConfig) Validate() error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.APIToken == "" {
		return fmt.Errorf("api_token is required")
	}
	cfg.Record = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(cfg.Record)), ".")
	if cfg.Record == "" || !strings.Contains(cfg.Record, ".") {
		return fmt.Errorf("record must be a fully qualified name, got %q", cfg.Record)
	}
	if cfg.TTL == 0 {
		cfg.TTL = 60
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return nil
}
