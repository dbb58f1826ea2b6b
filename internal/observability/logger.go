// Package observability holds the process-wide loggers.
package observability

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger used by commands. It is a no-op until
// InitCLILogger runs.
var CLILogger = zap.NewNop()

var cliLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// InitCLILogger builds a console logger on stderr tagged with service.
// verbose lowers the level to debug.
func InitCLILogger(service string, verbose bool) *zap.Logger {
	if verbose {
		cliLevel.SetLevel(zapcore.DebugLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		cliLevel,
	)
	CLILogger = zap.New(core, zap.AddCaller()).With(zap.String("service", service))
	return CLILogger
}

// SetLevel changes the CLI log level at runtime, e.g. from configuration.
func SetLevel(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cliLevel.SetLevel(lvl)
	return nil
}

// Level reports the current CLI log level.
func Level() zapcore.Level {
	return cliLevel.Level()
}
