package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"panic": zapcore.PanicLevel,
		"fatal": zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestContextHelpers verifies that loggers travel through contexts and fall back to the global one.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core).Sugar()

	require.Same(t, Logger(), FromContext(context.Background()))

	ctx := ToContext(context.Background(), base)
	ctx = WithName(ctx, "escalation")
	ctx = WithKV(ctx, "alert_id", "a-1")
	ctx = WithFields(ctx, "site", "north")

	InfoKV(ctx, "Fan-out started", "responders", 2)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "escalation", entries[0].LoggerName)
	require.Equal(t, "Fan-out started", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, "a-1", fields["alert_id"])
	require.Equal(t, "north", fields["site"])
	require.EqualValues(t, 2, fields["responders"])
}

// TestLeveledHelpers verifies that each helper writes at its own level.
func TestLeveledHelpers(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())

	DebugKV(ctx, "Escalation finished", "outcome", "push_delivered")
	Info(ctx, "Server started")
	InfoKV(ctx, "Claim accepted", "alert_id", "a-1")
	Warn(ctx, "Push gateway not configured")
	WarnKV(ctx, "Push send failed", "addresses", 2)
	ErrorKV(ctx, "Escalation failed", "attempts", 3)

	var levels []zapcore.Level
	for _, e := range logs.All() {
		levels = append(levels, e.Level)
	}

	require.Equal(t, []zapcore.Level{
		zapcore.DebugLevel,
		zapcore.InfoLevel,
		zapcore.InfoLevel,
		zapcore.WarnLevel,
		zapcore.WarnLevel,
		zapcore.ErrorLevel,
	}, levels)
	require.Equal(t, "Server started", logs.All()[1].Message)
}

// TestNewWithOptions_FileSink verifies that entries are teed into the rotating file.
func TestNewWithOptions_FileSink(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sos.log")

	l := NewWithOptions(zap.NewAtomicLevelAt(zapcore.InfoLevel), Options{
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	})

	l.Infow("Claim accepted", "alert_id", "a-1")
	l.Debugw("Dropped below level")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"message":"Claim accepted"`)
	require.Contains(t, string(data), `"alert_id":"a-1"`)
	require.NotContains(t, string(data), "Dropped below level")
}

// TestWithLevel verifies that a wrapped core applies its own threshold.
func TestWithLevel(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core, WithLevel(zapcore.WarnLevel)).Sugar()

	l.Info("hidden")
	l.Warn("shown")

	require.Equal(t, 1, logs.Len())
	require.Equal(t, "shown", logs.All()[0].Message)

	// Louder than the parent as well.
	core, logs = observer.New(zapcore.ErrorLevel)
	l = zap.New(core, WithLevel(zapcore.DebugLevel)).Sugar().With("k", "v")

	l.Debug("debug passes")
	require.Equal(t, 1, logs.Len())
	require.Equal(t, "v", logs.All()[0].ContextMap()["k"])
}
