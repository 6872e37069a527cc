package logger

import (
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// WriterFactory creates writers based on format
type WriterFactory struct {
	strategies map[LogFormat]WriterStrategy
}

// NewWriterFactory creates a new writer factory
func NewWriterFactory() *WriterFactory {
	return &WriterFactory{
		strategies: map[LogFormat]WriterStrategy{
			FormatJSON:    &JSONWriterStrategy{},
			FormatConsole: &ConsoleWriterStrategy{NoColor: false},
			FormatText:    &TextWriterStrategy{},
		},
	}
}

// CreateConsoleWriter creates a console writer
func (wf *WriterFactory) CreateConsoleWriter(format LogFormat, out io.Writer) io.Writer {
	if out == nil {
		out = os.Stderr
	}
	strategy, exists := wf.strategies[format]
	if !exists {
		strategy = &ConsoleWriterStrategy{NoColor: false}
	}
	return strategy.CreateWriter(out)
}

// CreateFileWriter creates a rotating file writer. Console format is written
// without colors to files.
func (wf *WriterFactory) CreateFileWriter(config LoggerConfig) io.Writer {
	finalPath := BuildLogPath(config)

	if err := os.MkdirAll(filepath.Dir(finalPath), 0755); err != nil {
		finalPath = config.FilePath
	}

	rotator := &lumberjack.Logger{
		Filename:   finalPath,
		MaxSize:    config.MaxSizeMB,
		LocalTime:  true,
		MaxBackups: config.MaxBackups,
	}

	if config.Format == FormatConsole {
		return (&ConsoleWriterStrategy{NoColor: true}).CreateWriter(rotator)
	}

	strategy, exists := wf.strategies[config.Format]
	if !exists {
		strategy = &JSONWriterStrategy{}
	}
	return strategy.CreateWriter(rotator)
}

// BuildLogPath returns the log file path, moved under scans/<scanID>/ when
// subdirectories are enabled and a scan ID is set.
func BuildLogPath(config LoggerConfig) string {
	if !config.UseSubdirs || config.ScanID == "" {
		return config.FilePath
	}

	baseDir := filepath.Dir(config.FilePath)
	fileName := filepath.Base(config.FilePath)
	return filepath.Join(baseDir, "scans", config.ScanID, fileName)
}
