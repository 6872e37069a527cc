package logger

import (
	"github.com/aleister1102/oerscout/internal/config"
	"github.com/rs/zerolog"
)

// Logger represents the main logger with configuration
type Logger struct {
	zerolog zerolog.Logger
	config  LoggerConfig
}

// GetZerolog returns the underlying zerolog instance
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zerolog
}

// Config returns the resolved configuration.
func (l *Logger) Config() LoggerConfig {
	return l.config
}

// New creates the root logger from the application log config.
func New(cfg config.LogConfig) (zerolog.Logger, error) {
	logger, err := NewLoggerBuilder().WithConfig(cfg).Build()
	if err != nil {
		return zerolog.Logger{}, err
	}
	return *logger.GetZerolog(), nil
}

// NewWithScanID creates a logger whose file output is kept per scan session.
func NewWithScanID(cfg config.LogConfig, scanID string) (zerolog.Logger, error) {
	logger, err := NewLoggerBuilder().
		WithConfig(cfg).
		WithScanID(scanID).
		Build()
	if err != nil {
		return zerolog.Logger{}, err
	}
	return *logger.GetZerolog(), nil
}
