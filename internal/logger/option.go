package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// levelOverride replaces the level check of the wrapped core, so a derived
// logger may be quieter or louder than its parent.
type levelOverride struct {
	zapcore.Core

	// enabler decides which entries pass.
	enabler zapcore.LevelEnabler
}

// Enabled reports whether entries at l pass the override.
func (c *levelOverride) Enabled(l zapcore.Level) bool {
	return c.enabler.Enabled(l)
}

// Check registers c for entries that pass the override.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *levelOverride) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}

	return ce.AddCore(ent, c)
}

// With keeps the override on child cores.
//
//nolint:ireturn,nolintlint // Returning zapcore.Core is intended for zap integration.
func (c *levelOverride) With(fields []zapcore.Field) zapcore.Core {
	return &levelOverride{
		Core:    c.Core.With(fields),
		enabler: c.enabler,
	}
}

// WithLevel makes a logger ignore its parent's level and use enabler instead.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithLevel(enabler zapcore.LevelEnabler) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &levelOverride{Core: core, enabler: enabler}
	})
}

// Derived returns the global logger named name with its own minimum level.
func Derived(name string, level zapcore.Level) *zap.SugaredLogger {
	return Logger().Named(name).WithOptions(WithLevel(level))
}
