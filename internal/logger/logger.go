package logger

import (
	"io"
	"os"

	"github.com/Syn1ak/notes-api-autotest/internal/config"
	"github.com/hashicorp/go-hclog"
)

const rootName = "notes-service"

// New builds the root logger. Components take named children of it.
func New(cfg config.LogConfig) hclog.Logger {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.LogConfig, w io.Writer) hclog.Logger {
	level := hclog.LevelFromString(cfg.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       rootName,
		Level:      level,
		Output:     w,
		JSONFormat: cfg.JSON,
	})
}
