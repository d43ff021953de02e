// Package logging builds the zap logger esedbexport and its internal
// packages share, following the development/production config split
// src/server/server.go uses for SyndrDB's server logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds a *zap.SugaredLogger. debug selects zap's development config
// (console-friendly, stack traces on Warn+); otherwise the production
// config (JSON, sampled) is used. logFile, if non-empty, is added as an
// additional output path alongside stdout.
func New(debug bool, logFile string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	cfg.OutputPaths = []string{"stdout"}
	if logFile != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, logFile)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging.New: %w", err)
	}

	zap.ReplaceGlobals(logger)
	return logger.Sugar(), nil
}
