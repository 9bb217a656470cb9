package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	// Embedded zone database for hosts without one.
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/sos-responder/internal/logger"
	"github.com/oshokin/sos-responder/internal/service/roles"
)

// Config holds the settings shared by the sos-responder binaries.
type Config struct {
	// GRPCAddress is the listen address of the claim/admin gRPC API.
	GRPCAddress string `yaml:"grpc_addr"`
	// HTTPAddress is the listen address of the HTTP API. Empty disables it.
	HTTPAddress string `yaml:"http_addr,omitempty"`
	// DatabasePath is the SQLite database file.
	DatabasePath string `yaml:"database_path"`
	// RedisURL points at the duplicate-trigger marker store.
	// Empty keeps markers in process memory.
	RedisURL string `yaml:"redis_url,omitempty"`
	// NATSURL points at the event bus. Empty disables the event consumer
	// and push delivery.
	NATSURL string `yaml:"nats_url,omitempty"`
	// AlertSubject is the subject alert-created events arrive on.
	AlertSubject string `yaml:"alert_subject,omitempty"`
	// AlertQueue is the queue group shared by service instances.
	AlertQueue string `yaml:"alert_queue,omitempty"`
	// PushSubject is the request subject of the push gateway.
	PushSubject string `yaml:"push_subject,omitempty"`
	// JWTSecret signs and verifies identity tokens.
	JWTSecret string `yaml:"jwt_secret,omitempty"`
	// WebhookSecret authorizes the alert-created webhook. Empty disables it.
	WebhookSecret string `yaml:"webhook_secret,omitempty"`
	// AdminEmails lists the emails allowed to assign roles.
	AdminEmails []string `yaml:"admin_emails,omitempty"`
	// SMSChannelID is the sender of outbound SMS records.
	SMSChannelID string `yaml:"sms_channel_id,omitempty"`
	// DeepLinkBase prefixes the alert id in push deep links.
	DeepLinkBase string `yaml:"deep_link_base,omitempty"`
	// AppName is shown in notification titles and SMS bodies.
	AppName string `yaml:"app_name,omitempty"`
	// Timezone renders alert timestamps in SMS bodies.
	Timezone string `yaml:"timezone,omitempty"`
	// Timeout bounds client RPCs and store operations.
	Timeout time.Duration `yaml:"timeout"`
	// EscalationTimeout bounds one background escalation.
	EscalationTimeout time.Duration `yaml:"escalation_timeout"`
	// EscalationAttempts is how many times a transiently failing escalation runs.
	EscalationAttempts int `yaml:"escalation_attempts"`
	// EscalationBackoff is the pause before the first retry, doubled after each one.
	EscalationBackoff time.Duration `yaml:"escalation_backoff"`
	// ResponderSMSLimit caps SMS records to responders.
	ResponderSMSLimit int `yaml:"responder_sms_limit"`
	// ContactSMSLimit caps SMS records to emergency contacts.
	ContactSMSLimit int `yaml:"contact_sms_limit"`
	// DedupTTL is how long a fan-out marker lives.
	DedupTTL time.Duration `yaml:"dedup_ttl"`
	// LogLevel is the minimum level of the application log.
	LogLevel string `yaml:"log_level,omitempty"`
	// AccessLogLevel is the minimum level of the HTTP access logger,
	// which writes at info. Set warn to silence it.
	AccessLogLevel string `yaml:"access_log_level,omitempty"`
	// LogJSON switches stdout logs to JSON lines.
	LogJSON bool `yaml:"log_json,omitempty"`
	// LogFile enables a rotating JSON log file when set.
	LogFile string `yaml:"log_file,omitempty"`
	// LogMaxSizeMB is the size at which the log file rotates.
	LogMaxSizeMB int `yaml:"log_max_size_mb,omitempty"`
	// LogMaxBackups is the number of rotated files kept.
	LogMaxBackups int `yaml:"log_max_backups,omitempty"`
	// LogMaxAgeDays is how long rotated files are kept.
	LogMaxAgeDays int `yaml:"log_max_age_days,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "sos-responder-settings.yaml"

	// DefaultDatabaseFilename is the default SQLite database file.
	DefaultDatabaseFilename = "sos-responder.db"

	// DefaultGRPCAddress is the default gRPC listen address.
	DefaultGRPCAddress = "127.0.0.1:8090"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultEscalationTimeout bounds one escalation.
	DefaultEscalationTimeout = 30 * time.Second

	// DefaultEscalationAttempts is the default escalation retry budget.
	DefaultEscalationAttempts = 3

	// DefaultEscalationBackoff is the default pause before the first retry.
	DefaultEscalationBackoff = time.Second

	// DefaultResponderSMSLimit caps responder SMS records.
	DefaultResponderSMSLimit = 10

	// DefaultContactSMSLimit caps contact SMS records.
	DefaultContactSMSLimit = 5

	// DefaultDedupTTL is the default marker lifetime.
	DefaultDedupTTL = 24 * time.Hour

	// DefaultAppName is used in message texts.
	DefaultAppName = "Ruff"

	// DefaultTimezone renders SMS timestamps.
	DefaultTimezone = "UTC"

	// DefaultLogLevel is the default application log level.
	DefaultLogLevel = "info"

	// DefaultAccessLogLevel is the default HTTP access log level.
	DefaultAccessLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// Environment overrides.
const (
	EnvJWTSecret    = "SOS_JWT_SECRET"
	EnvAdminEmails  = "SOS_ADMIN_EMAILS"
	EnvDatabasePath = "SOS_DATABASE_PATH"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeLimit is returned when an SMS cap is negative.
	errNegativeLimit = errors.New("sms limits must not be negative")
	// errUnknownLogLevel is returned for a level ParseLogLevel rejects.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Load reads configuration from the provided path, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	ApplyEnv(&cfg, os.LookupEnv)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold secrets.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// ApplyEnv overrides secrets and policy from the environment.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvJWTSecret); ok && v != "" {
		cfg.JWTSecret = v
	}

	if v, ok := lookup(EnvAdminEmails); ok && v != "" {
		cfg.AdminEmails = roles.ParseEmailList(v)
	}

	if v, ok := lookup(EnvDatabasePath); ok && v != "" {
		cfg.DatabasePath = v
	}
}

// Validate fills defaults and checks addresses, URLs and the timezone.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.GRPCAddress == "" {
		settings.GRPCAddress = DefaultGRPCAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.GRPCAddress); err != nil {
		return fmt.Errorf("invalid grpc address: %w", err)
	}

	if settings.HTTPAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.HTTPAddress); err != nil {
			return fmt.Errorf("invalid http address: %w", err)
		}
	}

	if err := validateURL("redis url", settings.RedisURL); err != nil {
		return err
	}

	if err := validateURL("nats url", settings.NATSURL); err != nil {
		return err
	}

	if settings.ResponderSMSLimit < 0 || settings.ContactSMSLimit < 0 {
		return errNegativeLimit
	}

	fillDefaults(settings)

	for _, level := range []string{settings.LogLevel, settings.AccessLogLevel} {
		if _, ok := logger.ParseLogLevel(level); !ok {
			return fmt.Errorf("%w: %q", errUnknownLogLevel, level)
		}
	}

	if _, err := time.LoadLocation(settings.Timezone); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}

	settings.AdminEmails = roles.ParseEmailList(strings.Join(settings.AdminEmails, ","))

	return nil
}

// Location returns the configured timezone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}

func fillDefaults(settings *Config) {
	if settings.DatabasePath == "" {
		settings.DatabasePath = DefaultDatabaseFilename
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.EscalationTimeout <= 0 {
		settings.EscalationTimeout = DefaultEscalationTimeout
	}

	if settings.EscalationAttempts <= 0 {
		settings.EscalationAttempts = DefaultEscalationAttempts
	}

	if settings.EscalationBackoff <= 0 {
		settings.EscalationBackoff = DefaultEscalationBackoff
	}

	if settings.ResponderSMSLimit == 0 {
		settings.ResponderSMSLimit = DefaultResponderSMSLimit
	}

	if settings.ContactSMSLimit == 0 {
		settings.ContactSMSLimit = DefaultContactSMSLimit
	}

	if settings.DedupTTL <= 0 {
		settings.DedupTTL = DefaultDedupTTL
	}

	if settings.AppName == "" {
		settings.AppName = DefaultAppName
	}

	if settings.Timezone == "" {
		settings.Timezone = DefaultTimezone
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if settings.AccessLogLevel == "" {
		settings.AccessLogLevel = DefaultAccessLogLevel
	}
}

func validateURL(name, raw string) error {
	if raw == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(raw); err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}

	return nil
}
