package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"ipwatch/internal/resolver"
	"ipwatch/internal/types"
	"ipwatch/internal/validator"

	"github.com/spf13/viper"
)

// Config represents ipwatch configuration
type Config struct {
	CheckIntervalSecs int              `mapstructure:"check_interval_secs" validate:"gte=0"`
	DBPath            string           `mapstructure:"db_path"`
	IPSources         []string         `mapstructure:"ip_sources" validate:"omitempty,unique,dive,sourceurl"`
	Watch             WatchConfig      `mapstructure:"watch"`
	History           HistoryConfig    `mapstructure:"history"`
	SMTP              SMTPConfig       `mapstructure:"smtp"`
	Webhook           WebhookConfig    `mapstructure:"webhook"`
	Cloudflare        CloudflareConfig `mapstructure:"cloudflare"`
	API               APIConfig        `mapstructure:"api"`
	Log               LogConfig        `mapstructure:"log"`

	// sourcesSet is true when ip_sources was given in the file or environment, even if empty
	sourcesSet bool
}

// WatchConfig represents scheduler tuning
type WatchConfig struct {
	JitterMin      time.Duration `mapstructure:"jitter_min" validate:"gte=0"`
	JitterMax      time.Duration `mapstructure:"jitter_max" validate:"gte=0"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	FinishTimeout  time.Duration `mapstructure:"finish_timeout" validate:"gt=0"`
}

// APIConfig represents the optional status API
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// LoadConfig loads configuration from path, or searches the standard locations
// for config.{toml,yaml,json} when path is empty
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		for _, p := range searchPaths {
			v.AddConfigPath(p)
		}
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(ex))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %w", types.ErrConfiguration, err)
	}

	// ip_sources has no default, so AutomaticEnv alone never reaches it.
	// An empty variable counts as an explicitly empty list.
	if raw, ok := os.LookupEnv(EnvPrefix + "_IP_SOURCES"); ok {
		v.Set("ip_sources", splitList(raw))
	}

	return load(v)
}

// splitList splits a comma or whitespace separated value, never returning nil
func splitList(raw string) []string {
	items := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if items == nil {
		return []string{}
	}
	return items
}

// load unmarshals and validates an already populated viper instance
func load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %w", types.ErrConfiguration, err)
	}
	cfg.sourcesSet = v.IsSet("ip_sources")

	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers defaults so every key can also be overridden from the environment
func setDefaults(v *viper.Viper) {
	v.SetDefault("check_interval_secs", 300)
	v.SetDefault("db_path", filepath.Join("data", AppName+".db"))

	v.SetDefault("watch.jitter_min", 3*time.Minute)
	v.SetDefault("watch.jitter_max", 6*time.Minute)
	v.SetDefault("watch.request_timeout", resolver.DefaultTimeout)
	v.SetDefault("watch.finish_timeout", 30*time.Second)

	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.dsn", "")
	v.SetDefault("history.auto_migrate", true)
	v.SetDefault("history.max_connections", 4)
	v.SetDefault("history.max_idle_conns", 2)
	v.SetDefault("history.conn_max_lifetime", time.Hour)
	v.SetDefault("history.query_timeout", 10*time.Second)
	v.SetDefault("history.redis.addr", "")
	v.SetDefault("history.redis.username", "")
	v.SetDefault("history.redis.password", "")
	v.SetDefault("history.redis.db", 0)
	v.SetDefault("history.redis.key", AppName+":history")
	v.SetDefault("history.redis.dial_timeout", 5*time.Second)
	v.SetDefault("history.connect_retry.attempts", 5)
	v.SetDefault("history.connect_retry.interval", time.Second)
	v.SetDefault("history.connect_retry.max_interval", 30*time.Second)

	v.SetDefault("smtp.enabled", true)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.app_password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.to", "")
	v.SetDefault("smtp.server", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.use_tls", false)
	v.SetDefault("smtp.timeout", 30*time.Second)

	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.timeout", 10*time.Second)

	v.SetDefault("cloudflare.enabled", false)
	v.SetDefault("cloudflare.api_token", "")
	v.SetDefault("cloudflare.zone_id", "")
	v.SetDefault("cloudflare.record", "")
	v.SetDefault("cloudflare.ttl", 60)
	v.SetDefault("cloudflare.proxied", false)
	v.SetDefault("cloudflare.comment", "managed by "+AppName)
	v.SetDefault("cloudflare.timeout", 30*time.Second)

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.listen", "127.0.0.1:8086")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", false)
}

// applyDerived fills values that depend on other keys
func (c *Config) applyDerived() {
	if c.History.Driver == "sqlite" && c.History.DSN == "" {
		c.History.DSN = c.DBPath
	}
	// App passwords are often pasted with spaces
	c.SMTP.AppPassword = strings.ReplaceAll(c.SMTP.AppPassword, " ", "")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.sourcesSet && len(c.IPSources) == 0 {
		return fmt.Errorf("%w: ip_sources is present but empty: %w", types.ErrConfiguration, types.ErrNoSources)
	}

	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}

	var errs []error
	if c.Watch.JitterMax < c.Watch.JitterMin {
		errs = append(errs, errors.New("watch.jitter_max must not be smaller than watch.jitter_min"))
	}
	if err := c.History.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("invalid history config: %w", err))
	}
	if err := c.SMTP.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("invalid smtp config: %w", err))
	}
	if err := c.Webhook.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("invalid webhook config: %w", err))
	}
	if err := c.Cloudflare.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("invalid cloudflare config: %w", err))
	}
	if !c.SMTP.Enabled && !c.Webhook.Enabled && !c.Cloudflare.Enabled {
		errs = append(errs, errors.New("at least one notification channel (smtp, webhook or cloudflare) must be enabled"))
	}
	if c.API.Enabled && c.API.Listen == "" {
		errs = append(errs, errors.New("api.listen is required when the api is enabled"))
	}
	if err := c.Log.SetDefaults().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("invalid log config: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", types.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// Interval returns the requested polling interval
func (c *Config) Interval() time.Duration {
	return time.Duration(c.CheckIntervalSecs) * time.Second
}

// Sources returns the configured address sources, or the built-in list when omitted
func (c *Config) Sources() []string {
	if !c.sourcesSet && len(c.IPSources) == 0 {
		return append([]string(nil), resolver.DefaultSources...)
	}
	return append([]string(nil), c.IPSources...)
}
