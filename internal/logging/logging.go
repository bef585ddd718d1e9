// Package logging builds the structured logger shared by the CLI and the
// driver.
package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level picks the minimum level: warnings by default, everything when
// verbose.
func Level(verbose bool) zapcore.Level {
	if verbose {
		return zapcore.DebugLevel
	}
	return zapcore.WarnLevel
}

// New returns a production JSON logger writing to stderr.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(Level(verbose))
	cfg.DisableStacktrace = !verbose
	return cfg.Build()
}

// NewWithWriter returns a JSON logger writing to w.
func NewWithWriter(w io.Writer, verbose bool) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(w),
		Level(verbose),
	)
	return zap.New(core)
}
