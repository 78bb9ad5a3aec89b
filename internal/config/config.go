// Package config loads modular-api's configuration from environment
// variables (prefix MODULAR_API_), an optional config.yaml, and built-in
// defaults, in that order of precedence via viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Mode selects which repository backend serves the document collections.
const (
	ModeHosted     = "hosted"
	ModeSelfHosted = "self-hosted"
)

type Config struct {
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`  // debug | info | warn | error
	LogFormat string `mapstructure:"log_format"` // json | text

	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// Mode picks the repository backend: "hosted" (Postgres) or
	// "self-hosted" (embedded SQLite).
	Mode               string `mapstructure:"mode"`
	DatabasePath       string `mapstructure:"database_path"`       // self-hosted only
	PostgresDSN        string `mapstructure:"postgres_dsn"`         // hosted only
	RequestTimeoutSec  int    `mapstructure:"request_timeout_sec"` // HTTP read/write; 0 = server default
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec"`

	// Auth: the shared signing/fingerprint key and token lifetime.
	SecretKey        string `mapstructure:"secret_key"`
	TokenTTLSec      int    `mapstructure:"token_ttl_sec"`
	AdminBootstrapUser string `mapstructure:"admin_bootstrap_user"`
	AdminBootstrapPass string `mapstructure:"admin_bootstrap_pass"`

	// Password policy.
	PasswordMinLength        int  `mapstructure:"password_min_length"`
	PasswordRequireUppercase bool `mapstructure:"password_require_uppercase"`
	PasswordRequireLowercase bool `mapstructure:"password_require_lowercase"`
	PasswordRequireNumbers   bool `mapstructure:"password_require_numbers"`
	PasswordRequireSpecial   bool `mapstructure:"password_require_special"`

	// Rate limiting: fixed-window size and the per-route ceiling; the same
	// ceiling applies to every route (command meta carries no override).
	RateLimitWindowSec    int `mapstructure:"rate_limit_window_sec"`
	RateLimitDefaultCeiling int `mapstructure:"rate_limit_default_ceiling"`

	// Module registry.
	ModuleDescriptorDir string `mapstructure:"module_descriptor_dir"`
	// ModuleBackendBaseURL is the gateway every dispatched command is
	// forwarded to, at base_url + the command's declared route path.
	ModuleBackendBaseURL string `mapstructure:"module_backend_base_url"`

	// APIVersion is the version reported in the swagger document's info
	// block; no request header is checked against it.
	APIVersion string `mapstructure:"api_version"`
	// MinCLIVersion is the lowest client CLI version the dispatcher's
	// version gate accepts; callers below it are rejected before
	// authentication runs.
	MinCLIVersion string `mapstructure:"min_cli_version"`

	// TLS.
	TLSEnabled  bool   `mapstructure:"tls_enabled"`
	TLSCertPath string `mapstructure:"tls_cert_path"`
	TLSKeyPath  string `mapstructure:"tls_key_path"`

	// Tracing is accepted as a configuration knob for forward
	// compatibility; modular-api does not currently emit spans.
	TracingEnabled bool `mapstructure:"tracing_enabled"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/modular-api/")
	viper.AddConfigPath("$HOME/.modular-api")
	viper.AddConfigPath(".")

	viper.SetDefault("port", 8190)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("allowed_origins", []string{"http://localhost:5173"})

	viper.SetDefault("mode", ModeSelfHosted)
	viper.SetDefault("database_path", "./modular-api.db")
	viper.SetDefault("postgres_dsn", "")
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("shutdown_timeout_sec", 15)

	viper.SetDefault("secret_key", "")
	viper.SetDefault("token_ttl_sec", 3600)
	viper.SetDefault("admin_bootstrap_user", "")
	viper.SetDefault("admin_bootstrap_pass", "")

	viper.SetDefault("password_min_length", 12)
	viper.SetDefault("password_require_uppercase", true)
	viper.SetDefault("password_require_lowercase", true)
	viper.SetDefault("password_require_numbers", true)
	viper.SetDefault("password_require_special", true)

	viper.SetDefault("rate_limit_window_sec", 60)
	viper.SetDefault("rate_limit_default_ceiling", 120)

	viper.SetDefault("module_descriptor_dir", "./modules")
	viper.SetDefault("module_backend_base_url", "http://localhost:9000")

	viper.SetDefault("api_version", "v1")
	viper.SetDefault("min_cli_version", "0.0.0")

	viper.SetDefault("tls_enabled", false)
	viper.SetDefault("tls_cert_path", "")
	viper.SetDefault("tls_key_path", "")
	viper.SetDefault("tracing_enabled", false)

	viper.SetEnvPrefix("MODULAR_API")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Normalize allowed_origins: MODULAR_API_ALLOWED_ORIGINS is often a
	// single comma-separated string (e.g. set from a container platform),
	// but may already arrive pre-split from a config file list.
	if len(cfg.AllowedOrigins) == 1 && strings.Contains(cfg.AllowedOrigins[0], ",") {
		parts := strings.Split(cfg.AllowedOrigins[0], ",")
		cfg.AllowedOrigins = make([]string, 0, len(parts))
		for _, p := range parts {
			if o := strings.TrimSpace(p); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	} else {
		normalized := make([]string, 0, len(cfg.AllowedOrigins))
		for _, origin := range cfg.AllowedOrigins {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				normalized = append(normalized, trimmed)
			}
		}
		cfg.AllowedOrigins = normalized
	}

	if cfg.Mode != ModeHosted && cfg.Mode != ModeSelfHosted {
		return nil, fmt.Errorf("invalid mode %q: must be %q or %q", cfg.Mode, ModeHosted, ModeSelfHosted)
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("secret_key (MODULAR_API_SECRET_KEY) must be set")
	}

	return &cfg, nil
}
