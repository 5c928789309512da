package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Backend names accepted in the "backend" key.
const (
	BackendLocal = "local"
	BackendIMAP  = "imap"
)

// LocalConfig configures the SQLite mailbox and calendar.
type LocalConfig struct {
	// DBPath is the SQLite database file. ":memory:" is accepted.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// IMAPConfig holds the IMAP server settings for the mail backend.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`

	// Password is normally left empty and resolved from the environment
	// or the system keyring at startup.
	Password string `mapstructure:"password" yaml:"-"`

	TLS bool `mapstructure:"tls" yaml:"tls"`

	// FetchBatch is how many messages one FETCH command downloads.
	FetchBatch int `mapstructure:"fetch_batch" yaml:"fetch_batch"`

	// DraftsMailbox and SentMailbox are used when the server does not
	// advertise SPECIAL-USE attributes.
	DraftsMailbox string `mapstructure:"drafts_mailbox" yaml:"drafts_mailbox"`
	SentMailbox   string `mapstructure:"sent_mailbox" yaml:"sent_mailbox"`
}

// SMTPConfig holds the outgoing mail server for the IMAP backend.
type SMTPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`

	// File, when set, receives rotated logs instead of stderr.
	File string `mapstructure:"file" yaml:"file"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	// Listen is a host:port for /metrics. Empty disables the listener.
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// LimitsConfig bounds the "days" argument of listing tools.
type LimitsConfig struct {
	MaxEmailDays    int `mapstructure:"max_email_days" yaml:"max_email_days"`
	MaxCalendarDays int `mapstructure:"max_calendar_days" yaml:"max_calendar_days"`
}

// AppConfig is the top-level server configuration.
type AppConfig struct {
	Backend string        `mapstructure:"backend" yaml:"backend"`
	Local   LocalConfig   `mapstructure:"local" yaml:"local"`
	IMAP    IMAPConfig    `mapstructure:"imap" yaml:"imap"`
	SMTP    SMTPConfig    `mapstructure:"smtp" yaml:"smtp"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Limits  LimitsConfig  `mapstructure:"limits" yaml:"limits"`
}

// EnvPrefix is prepended to every environment override,
// e.g. OUTLOOK_MCP_IMAP_HOST for imap.host.
const EnvPrefix = "OUTLOOK_MCP"

// configDir returns ~/.config/outlook-mcp, or "." when the home
// directory cannot be determined.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "outlook-mcp")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/outlook-mcp/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Backend: BackendLocal,
		Local: LocalConfig{
			DBPath: filepath.Join(configDir(), "mailbox.db"),
		},
		IMAP: IMAPConfig{
			Port:          "993",
			TLS:           true,
			FetchBatch:    200,
			DraftsMailbox: "Drafts",
			SentMailbox:   "Sent",
		},
		SMTP: SMTPConfig{
			Port: "465",
		},
		Log: LogConfig{
			Level: "info",
		},
		Limits: LimitsConfig{
			MaxEmailDays:    30,
			MaxCalendarDays: 60,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("backend", d.Backend)
	v.SetDefault("local.db_path", d.Local.DBPath)
	v.SetDefault("imap.host", "")
	v.SetDefault("imap.port", d.IMAP.Port)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.tls", d.IMAP.TLS)
	v.SetDefault("imap.fetch_batch", d.IMAP.FetchBatch)
	v.SetDefault("imap.drafts_mailbox", d.IMAP.DraftsMailbox)
	v.SetDefault("imap.sent_mailbox", d.IMAP.SentMailbox)
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", d.SMTP.Port)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.listen", "")
	v.SetDefault("limits.max_email_days", d.Limits.MaxEmailDays)
	v.SetDefault("limits.max_calendar_days", d.Limits.MaxCalendarDays)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with EnvPrefix override file values.
// If the file does not exist, defaults (plus environment) are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks cross-field constraints that defaults cannot express.
func (c *AppConfig) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.Local.DBPath == "" {
			return fmt.Errorf("local.db_path is required for the local backend")
		}
	case BackendIMAP:
		if c.IMAP.Host == "" || c.IMAP.Username == "" {
			return fmt.Errorf("imap.host and imap.username are required for the imap backend")
		}
		if c.SMTP.Host == "" {
			c.SMTP.Host = c.IMAP.Host
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	if c.Limits.MaxEmailDays < 1 || c.Limits.MaxCalendarDays < 1 {
		return fmt.Errorf("limits must be at least 1 day")
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend", cfg.Backend)
	v.Set("local.db_path", cfg.Local.DBPath)
	v.Set("imap.host", cfg.IMAP.Host)
	v.Set("imap.port", cfg.IMAP.Port)
	v.Set("imap.username", cfg.IMAP.Username)
	v.Set("imap.tls", cfg.IMAP.TLS)
	v.Set("imap.fetch_batch", cfg.IMAP.FetchBatch)
	v.Set("imap.drafts_mailbox", cfg.IMAP.DraftsMailbox)
	v.Set("imap.sent_mailbox", cfg.IMAP.SentMailbox)
	v.Set("smtp.host", cfg.SMTP.Host)
	v.Set("smtp.port", cfg.SMTP.Port)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.file", cfg.Log.File)
	v.Set("metrics.listen", cfg.Metrics.Listen)
	v.Set("limits.max_email_days", cfg.Limits.MaxEmailDays)
	v.Set("limits.max_calendar_days", cfg.Limits.MaxCalendarDays)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
