// Package logger holds the process-wide zap logger.
// Initialize must be called once from main before any other package logs.
package logger

import (
	"go.uber.org/zap"
)

// Log is a no-op logger until Initialize is called.
var Log = zap.NewNop()

// Initialize builds a production logger at the given level and replaces Log.
func Initialize(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl

	zl, err := cfg.Build()
	if err != nil {
		return err
	}

	Log = zl
	return nil
}
