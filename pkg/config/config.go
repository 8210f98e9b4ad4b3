// Package config loads and validates the ixsync configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/peerix/ixsync/internal/logger"
	"github.com/peerix/ixsync/internal/telemetry"
	"github.com/peerix/ixsync/pkg/registry/store"
)

// Config represents the ixsync configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (IXSYNC_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging logger.Config `mapstructure:"logging" yaml:"logging"`

	// Database configures the registry database (SQLite or PostgreSQL).
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Importer configures the reconciliation engine.
	Importer ImporterConfig `mapstructure:"importer" yaml:"importer"`

	// Mail configures notification dispatch.
	Mail MailConfig `mapstructure:"mail" yaml:"mail"`

	// Ticket configures the ticketing-system client.
	Ticket TicketConfig `mapstructure:"ticket" yaml:"ticket"`

	// API contains the HTTP API server configuration.
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Telemetry configures OpenTelemetry trace export.
	Telemetry telemetry.Config `mapstructure:"telemetry" yaml:"telemetry"`
}

// ImporterConfig holds the reconciliation engine's knobs.
type ImporterConfig struct {
	// FetchTimeout bounds a single feed fetch.
	// Default: 5s
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`

	// TicketOnConflict enables ticket creation for unresolved proposals.
	// Default: true
	TicketOnConflict bool `mapstructure:"ticket_on_conflict" yaml:"ticket_on_conflict"`

	// NotifyIXOnConflict enables conflict emails to exchanges.
	// Default: false
	NotifyIXOnConflict bool `mapstructure:"notify_ix_on_conflict" yaml:"notify_ix_on_conflict"`

	// NotifyNetOnConflict enables conflict emails to networks.
	// Default: false
	NotifyNetOnConflict bool `mapstructure:"notify_net_on_conflict" yaml:"notify_net_on_conflict"`

	// DaysUntilTicket is the proposal age threshold for ticket
	// escalation. Zero disables age-gating: every open proposal
	// without a ticket escalates on the next run.
	// Default: 6
	DaysUntilTicket int `mapstructure:"days_until_ticket" validate:"min=0" yaml:"days_until_ticket"`

	// ParseErrorNotificationPeriod is the minimum spacing, in hours,
	// between repeated feed-error notifications for the same IXLAN.
	// Default: 360
	ParseErrorNotificationPeriod int `mapstructure:"parse_error_notification_period" validate:"min=0" yaml:"parse_error_notification_period"`

	// PostmortemLimit caps the size of a post-mortem report.
	// Default: 250
	PostmortemLimit int `mapstructure:"postmortem_limit" validate:"min=1" yaml:"postmortem_limit"`
}

// MailConfig configures notification email dispatch.
type MailConfig struct {
	// Debug routes all mail to the local debug sink instead of SMTP.
	// Default: true
	Debug bool `mapstructure:"debug" yaml:"debug"`

	// SubjectPrefix is prepended to every notification subject.
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`

	// From is the envelope sender.
	From string `mapstructure:"from" validate:"omitempty,email" yaml:"from"`

	// SMTPAddr is the host:port of the SMTP relay.
	SMTPAddr string `mapstructure:"smtp_addr" yaml:"smtp_addr"`
}

// TicketConfig configures the ticketing-system client.
type TicketConfig struct {
	// Send uses the real ticket API; false uses the mock client.
	// Default: false
	Send bool `mapstructure:"send" yaml:"send"`

	// URL is the ticket API base URL.
	URL string `mapstructure:"url" validate:"omitempty,url" yaml:"url"`

	// Key is the ticket API credential.
	Key string `mapstructure:"key" yaml:"key"`
}

// APIConfig configures the HTTP API server.
type APIConfig struct {
	// Port is the HTTP port for the API endpoints.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Preview imports fetch the remote feed inline, so this stays
	// comfortably above the importer's fetch timeout.
	// Default: 30s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Config may hold SMTP and ticket API credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration against its validate tags plus the
// database section's own rules.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	return cfg.Database.Validate()
}

// setupViper configures viper with environment variables and config file
// settings. Environment variables use the IXSYNC_ prefix, for example
// IXSYNC_IMPORTER_DAYS_UNTIL_TICKET=0.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("IXSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Zero and false are meaningful values here, so these defaults live
	// in viper rather than ApplyDefaults.
	v.SetDefault("importer.days_until_ticket", 6)
	v.SetDefault("importer.ticket_on_conflict", true)
	v.SetDefault("mail.debug", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns the decode hooks for custom config types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook parses duration strings like "5s" or "2h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		if f.Kind() == reflect.String {
			return time.ParseDuration(data.(string))
		}
		return data, nil
	}
}

// getConfigDir returns the default configuration directory.
func getConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "ixsync")
}

// GetDefaultConfigPath returns the default config file location.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
