package logger

import (
	"strings"

	"github.com/aleister1102/oerscout/internal/common"
	"github.com/aleister1102/oerscout/internal/config"
	"github.com/rs/zerolog"
)

// ParseLevel parses string log level to zerolog.Level
func ParseLevel(levelStr string) (zerolog.Level, error) {
	if strings.TrimSpace(levelStr) == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		return zerolog.InfoLevel, common.WrapError(err, "invalid log level")
	}
	return level, nil
}

// ParseFormat parses string format to LogFormat
func ParseFormat(formatStr string) LogFormat {
	switch strings.ToLower(formatStr) {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	default:
		return FormatConsole
	}
}

// FromConfig converts application config to logger config. An unparseable level
// falls back to info.
func FromConfig(cfg config.LogConfig) LoggerConfig {
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	lc := DefaultLoggerConfig()
	lc.Level = level
	lc.Format = ParseFormat(cfg.LogFormat)
	lc.EnableFile = cfg.LogFile != ""
	lc.FilePath = cfg.LogFile
	if cfg.MaxLogSizeMB > 0 {
		lc.MaxSizeMB = cfg.MaxLogSizeMB
	}
	if cfg.MaxLogBackups > 0 {
		lc.MaxBackups = cfg.MaxLogBackups
	}
	return lc
}
