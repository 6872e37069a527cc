package logger

import (
	"io"
	stdlog "log"

	"github.com/aleister1102/oerscout/internal/common"
	"github.com/aleister1102/oerscout/internal/config"
	"github.com/rs/zerolog"
)

// LoggerBuilder provides fluent interface for building loggers
type LoggerBuilder struct {
	config  LoggerConfig
	factory *WriterFactory
}

// NewLoggerBuilder creates a new logger builder
func NewLoggerBuilder() *LoggerBuilder {
	return &LoggerBuilder{
		config:  DefaultLoggerConfig(),
		factory: NewWriterFactory(),
	}
}

// WithConfig sets the logger configuration from the application config
func (lb *LoggerBuilder) WithConfig(cfg config.LogConfig) *LoggerBuilder {
	scanID, out := lb.config.ScanID, lb.config.ConsoleOut
	lb.config = FromConfig(cfg)
	lb.config.ScanID = scanID
	lb.config.ConsoleOut = out
	return lb
}

// WithLevel overrides the configured level.
func (lb *LoggerBuilder) WithLevel(level zerolog.Level) *LoggerBuilder {
	lb.config.Level = level
	return lb
}

// WithScanID sets the scan ID for organizing logs by scan session
func (lb *LoggerBuilder) WithScanID(scanID string) *LoggerBuilder {
	lb.config.ScanID = scanID
	return lb
}

// WithConsoleOutput redirects console output.
func (lb *LoggerBuilder) WithConsoleOutput(w io.Writer) *LoggerBuilder {
	lb.config.ConsoleOut = w
	return lb
}

// Build creates the logger instance
func (lb *LoggerBuilder) Build() (*Logger, error) {
	if err := lb.validateConfig(); err != nil {
		return nil, err
	}

	writers := lb.createWriters()
	if len(writers) == 0 {
		return nil, common.NewError("no output writers configured")
	}

	multiWriter := zerolog.MultiLevelWriter(writers...)
	zl := zerolog.New(multiWriter).
		Level(lb.config.Level).
		With().
		Timestamp().
		Logger()

	stdlog.SetOutput(zl)
	stdlog.SetFlags(0)

	return &Logger{
		zerolog: zl,
		config:  lb.config,
	}, nil
}

func (lb *LoggerBuilder) validateConfig() error {
	if lb.config.EnableFile && lb.config.FilePath == "" {
		return common.NewValidationError("file_path", lb.config.FilePath, "file path required when file logging enabled")
	}
	if lb.config.MaxSizeMB <= 0 {
		return common.NewValidationError("max_size_mb", lb.config.MaxSizeMB, "max size must be positive")
	}
	return nil
}

func (lb *LoggerBuilder) createWriters() []io.Writer {
	var writers []io.Writer

	if lb.config.EnableConsole {
		writers = append(writers, lb.factory.CreateConsoleWriter(lb.config.Format, lb.config.ConsoleOut))
	}
	if lb.config.EnableFile {
		writers = append(writers, lb.factory.CreateFileWriter(lb.config))
	}

	return writers
}
