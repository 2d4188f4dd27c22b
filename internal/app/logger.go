package app

import (
	"strings"

	"github.com/feelize/platform/pkg/logger"
)

// ConfigureLogging initialises the global logger with the provided level, defaulting to info.
func ConfigureLogging(level string, development bool) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	return logger.Init(logger.Options{Level: level, Development: development})
}
