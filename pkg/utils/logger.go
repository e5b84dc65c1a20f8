package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case LogLevelDebug:
		return logrus.DebugLevel
	case LogLevelWarn:
		return logrus.WarnLevel
	case LogLevelError:
		return logrus.ErrorLevel
	case LogLevelFatal:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLogLevel maps a configuration string onto a LogLevel.
// Unknown values fall back to info.
func ParseLogLevel(s string) LogLevel {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return LogLevelInfo
	}
	switch lvl {
	case logrus.TraceLevel, logrus.DebugLevel:
		return LogLevelDebug
	case logrus.WarnLevel:
		return LogLevelWarn
	case logrus.ErrorLevel:
		return LogLevelError
	case logrus.FatalLevel, logrus.PanicLevel:
		return LogLevelFatal
	default:
		return LogLevelInfo
	}
}

// Logger interface defines the logging contract
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})

	SetLevel(level LogLevel)
	SetOutput(w io.Writer)
	SetFormat(format LogFormat)

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// LogFormat represents the log output format
type LogFormat int

const (
	LogFormatText LogFormat = iota
	LogFormatJSON
	LogFormatCompact
)

// ParseLogFormat maps "text", "json" or "compact" onto a LogFormat.
func ParseLogFormat(s string) LogFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return LogFormatJSON
	case "compact":
		return LogFormatCompact
	default:
		return LogFormatText
	}
}

// LoggerConfig contains logger configuration
type LoggerConfig struct {
	Level       LogLevel
	Format      LogFormat
	Output      io.Writer
	EnableFile  bool
	FilePath    string
	EnableColor bool
}

// DefaultLoggerConfig returns a default logger configuration
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:       LogLevelInfo,
		Format:      LogFormatText,
		Output:      os.Stderr,
		EnableColor: true,
	}
}

// ScopeLogger is the logrus backed Logger implementation
type ScopeLogger struct {
	base  *logrus.Logger
	entry *logrus.Entry
	file  *os.File
	cfg   *LoggerConfig
}

// NewLogger creates a new logger with the given configuration
func NewLogger(config *LoggerConfig) (*ScopeLogger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}

	base := logrus.New()
	l := &ScopeLogger{
		base:  base,
		entry: logrus.NewEntry(base),
		cfg:   config,
	}

	if err := l.setupOutput(); err != nil {
		return nil, fmt.Errorf("failed to setup logger output: %w", err)
	}
	l.SetLevel(config.Level)
	l.SetFormat(config.Format)

	return l, nil
}

// setupOutput configures the logger output
func (l *ScopeLogger) setupOutput() error {
	output := l.cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if l.cfg.EnableFile && l.cfg.FilePath != "" {
		dir := filepath.Dir(l.cfg.FilePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(l.cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = file
		output = io.MultiWriter(output, file)
	}

	l.base.SetOutput(output)
	return nil
}

func (l *ScopeLogger) Debug(msg string, args ...interface{}) {
	l.entry.Debugf(msg, args...)
}

func (l *ScopeLogger) Info(msg string, args ...interface{}) {
	l.entry.Infof(msg, args...)
}

func (l *ScopeLogger) Warn(msg string, args ...interface{}) {
	l.entry.Warnf(msg, args...)
}

func (l *ScopeLogger) Error(msg string, args ...interface{}) {
	l.entry.Errorf(msg, args...)
}

// Fatal logs a fatal message and exits
func (l *ScopeLogger) Fatal(msg string, args ...interface{}) {
	l.entry.Fatalf(msg, args...)
}

// SetLevel sets the logging level
func (l *ScopeLogger) SetLevel(level LogLevel) {
	l.cfg.Level = level
	l.base.SetLevel(level.logrusLevel())
}

// SetOutput sets the output writer
func (l *ScopeLogger) SetOutput(w io.Writer) {
	l.cfg.Output = w
	_ = l.setupOutput()
}

// SetFormat sets the log format
func (l *ScopeLogger) SetFormat(format LogFormat) {
	l.cfg.Format = format
	switch format {
	case LogFormatJSON:
		l.base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	case LogFormatCompact:
		l.base.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: true,
			ForceColors:      l.cfg.EnableColor,
			DisableColors:    !l.cfg.EnableColor,
		})
	default:
		l.base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   !l.cfg.EnableColor,
		})
	}
}

// WithField returns a logger with an additional field
func (l *ScopeLogger) WithField(key string, value interface{}) Logger {
	return &ScopeLogger{
		base:  l.base,
		entry: l.entry.WithField(key, value),
		file:  l.file,
		cfg:   l.cfg,
	}
}

// WithFields returns a logger with additional fields
func (l *ScopeLogger) WithFields(fields map[string]interface{}) Logger {
	return &ScopeLogger{
		base:  l.base,
		entry: l.entry.WithFields(logrus.Fields(fields)),
		file:  l.file,
		cfg:   l.cfg,
	}
}

// Close closes the logger and any open files
func (l *ScopeLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	l, _ := NewLogger(&LoggerConfig{Level: LogLevelError, Output: io.Discard})
	return l
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger
)

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(config *LoggerConfig) error {
	logger, err := NewLogger(config)
	if err != nil {
		return err
	}
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
	return nil
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		logger, _ := NewLogger(DefaultLoggerConfig())
		globalLogger = logger
	}
	return globalLogger
}

// Convenience functions for global logger
func Debug(msg string, args ...interface{}) {
	GetGlobalLogger().Debug(msg, args...)
}

func Info(msg string, args ...interface{}) {
	GetGlobalLogger().Info(msg, args...)
}

func Warn(msg string, args ...interface{}) {
	GetGlobalLogger().Warn(msg, args...)
}

func Error(msg string, args ...interface{}) {
	GetGlobalLogger().Error(msg, args...)
}

func Fatal(msg string, args ...interface{}) {
	GetGlobalLogger().Fatal(msg, args...)
}
