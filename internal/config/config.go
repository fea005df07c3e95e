package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the nbtoff utility
type Config struct {
	Hosts     []string        `mapstructure:"hosts"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	SSH       SSHConfig       `mapstructure:"ssh"`
	Report    ReportConfig    `mapstructure:"report"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DiscoveryConfig configures directory-based host discovery.
// Discovery is only consulted when no explicit host list is supplied.
type DiscoveryConfig struct {
	URL          string        `mapstructure:"url"`     // e.g. "ldaps://dc01.corp.example.com:636"
	BaseDN       string        `mapstructure:"base_dn"` // e.g. "DC=corp,DC=example,DC=com"
	BindDN       string        `mapstructure:"bind_dn"`
	BindPassword string        `mapstructure:"bind_password"`
	Domain       string        `mapstructure:"domain"` // overrides the local machine's DNS domain
	Timeout      time.Duration `mapstructure:"timeout"`
}

// DispatchConfig bounds the remote fan-out
type DispatchConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// SSHConfig configures the remote-execution channel
type SSHConfig struct {
	User    string        `mapstructure:"user"`
	KeyFile string        `mapstructure:"key_file"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ReportConfig controls where run summaries go beyond stdout
type ReportConfig struct {
	NATS NATSConfig `mapstructure:"nats"`
}

// NATSConfig configures the optional summary publisher
type NATSConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	URLs    []string   `mapstructure:"urls"`
	Subject string     `mapstructure:"subject"`
	Auth    AuthConfig `mapstructure:"auth"`
}

// AuthConfig configures NATS authentication
type AuthConfig struct {
	Type      string `mapstructure:"type"` // "none", "token", "userpass", "creds"
	Token     string `mapstructure:"token"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	CredsFile string `mapstructure:"creds_file"`
}

// ScheduleConfig enables periodic enforcement runs
type ScheduleConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// LoggingConfig configures zap output and rotation
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Load reads configuration from the given path (or the platform default when
// empty), applies defaults and environment overrides, and validates the result.
// A missing config file is not an error: the defaults describe a usable
// local-only run.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path == "" {
		path = GetDefaultConfigPath()
	}
	v.SetConfigFile(path)

	v.SetEnvPrefix("NBTOFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		// No file at the default location: run on defaults alone
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// setDefaults establishes default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("discovery.timeout", 30*time.Second)

	v.SetDefault("dispatch.max_concurrent", 10)

	v.SetDefault("ssh.user", "Administrator")
	v.SetDefault("ssh.port", 22)
	v.SetDefault("ssh.timeout", 60*time.Second)

	v.SetDefault("report.nats.enabled", false)
	v.SetDefault("report.nats.subject", "nbtoff.reports")
	v.SetDefault("report.nats.auth.type", "none")

	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.interval", 24*time.Hour)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)

	UpdateConfigDefaults(v)
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validate checks the configuration for inconsistencies
func validate(cfg *Config) error {
	if cfg.Dispatch.MaxConcurrent < 1 {
		return fmt.Errorf("dispatch.max_concurrent must be at least 1, got %d", cfg.Dispatch.MaxConcurrent)
	}

	if cfg.SSH.Port < 1 || cfg.SSH.Port > 65535 {
		return fmt.Errorf("ssh.port must be between 1 and 65535, got %d", cfg.SSH.Port)
	}

	if cfg.Discovery.URL != "" && cfg.Discovery.BaseDN == "" {
		return fmt.Errorf("discovery.base_dn is required when discovery.url is set")
	}

	if cfg.Report.NATS.Enabled {
		if len(cfg.Report.NATS.URLs) == 0 {
			return fmt.Errorf("report.nats.urls is required when NATS reporting is enabled")
		}
		if cfg.Report.NATS.Subject == "" {
			return fmt.Errorf("report.nats.subject is required when NATS reporting is enabled")
		}
		switch cfg.Report.NATS.Auth.Type {
		case "none", "token", "userpass", "creds":
		default:
			return fmt.Errorf("invalid report.nats.auth.type: %s", cfg.Report.NATS.Auth.Type)
		}
	}

	if cfg.Schedule.Enabled && cfg.Schedule.Interval < time.Minute {
		return fmt.Errorf("schedule.interval must be at least 1m, got %s", cfg.Schedule.Interval)
	}

	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", cfg.Logging.Level)
	}

	if cfg.Logging.MaxSizeMB < 1 {
		return fmt.Errorf("logging.max_size_mb must be at least 1, got %d", cfg.Logging.MaxSizeMB)
	}

	return nil
}
