package infrastructure

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds a JSON production logger, or a console logger when format is "console".
func NewLogger(level, format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = lvl

	return cfg.Build()
}
