package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks defaults and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty settings get defaults.
	settings := new(Config)
	require.NoError(t, Validate(settings))
	require.Equal(t, DefaultGRPCAddress, settings.GRPCAddress)
	require.Equal(t, DefaultDatabaseFilename, settings.DatabasePath)
	require.Equal(t, DefaultTimeout, settings.Timeout)
	require.Equal(t, DefaultEscalationTimeout, settings.EscalationTimeout)
	require.Equal(t, DefaultEscalationAttempts, settings.EscalationAttempts)
	require.Equal(t, DefaultEscalationBackoff, settings.EscalationBackoff)
	require.Equal(t, DefaultResponderSMSLimit, settings.ResponderSMSLimit)
	require.Equal(t, DefaultContactSMSLimit, settings.ContactSMSLimit)
	require.Equal(t, DefaultDedupTTL, settings.DedupTTL)
	require.Equal(t, DefaultTimezone, settings.Timezone)
	require.Equal(t, time.UTC, settings.Location())

	tests := []struct {
		name     string
		settings *Config
	}{
		{name: "nil", settings: nil},
		{name: "bad grpc address", settings: &Config{GRPCAddress: "bad:address"}},
		{name: "bad http address", settings: &Config{HTTPAddress: "nowhere"}},
		{name: "bad redis url", settings: &Config{RedisURL: "not a url"}},
		{name: "bad nats url", settings: &Config{NATSURL: "::"}},
		{name: "negative limit", settings: &Config{ContactSMSLimit: -1}},
		{name: "unknown log level", settings: &Config{LogLevel: "loud"}},
		{name: "unknown timezone", settings: &Config{Timezone: "Mars/Olympus_Mons"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Error(t, Validate(tt.settings))
		})
	}
}

// TestValidate_AdminEmails verifies the allowlist is normalized once.
func TestValidate_AdminEmails(t *testing.T) {
	t.Parallel()

	settings := &Config{AdminEmails: []string{" Root@Example.com ", "", "ops@example.com"}}
	require.NoError(t, Validate(settings))
	require.Equal(t, []string{"root@example.com", "ops@example.com"}, settings.AdminEmails)
}

// TestApplyEnv verifies environment overrides.
func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvJWTSecret:    "from-env",
		EnvAdminEmails:  "A@example.com, b@example.com",
		EnvDatabasePath: "/var/lib/sos/sos.db",
	}

	settings := &Config{JWTSecret: "from-file", DatabasePath: "local.db"}
	ApplyEnv(settings, func(key string) (string, bool) {
		v, ok := env[key]

		return v, ok
	})

	require.Equal(t, "from-env", settings.JWTSecret)
	require.Equal(t, []string{"a@example.com", "b@example.com"}, settings.AdminEmails)
	require.Equal(t, "/var/lib/sos/sos.db", settings.DatabasePath)

	// Unset variables keep file values.
	settings = &Config{JWTSecret: "from-file"}
	ApplyEnv(settings, func(string) (string, bool) { return "", false })
	require.Equal(t, "from-file", settings.JWTSecret)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := &Config{
		GRPCAddress:       "127.0.0.1:50051",
		HTTPAddress:       "127.0.0.1:8080",
		DatabasePath:      filepath.Join(dir, "sos.db"),
		RedisURL:          "redis://localhost:6379/0",
		Timezone:          "Asia/Jerusalem",
		ResponderSMSLimit: 3,
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings.GRPCAddress, loaded.GRPCAddress)
	require.Equal(t, settings.HTTPAddress, loaded.HTTPAddress)
	require.Equal(t, settings.RedisURL, loaded.RedisURL)
	require.Equal(t, 3, loaded.ResponderSMSLimit)
	require.Equal(t, "Asia/Jerusalem", loaded.Location().String())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())

	require.Error(t, Save(path, nil))
}
