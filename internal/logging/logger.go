package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows standard operational messages
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose shows detailed operational information
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows all debug information
	LogLevelDebug LogLevel = "debug"
)

// Logger provides structured logging capabilities
type Logger struct {
	logger *logrus.Logger
	entry  *logrus.Entry
	level  LogLevel
}

// Config holds logger configuration
type Config struct {
	Level      LogLevel  `mapstructure:"level" yaml:"level"`
	Format     string    `mapstructure:"format" yaml:"format"` // "text" or "json"
	LogFile    string    `mapstructure:"file" yaml:"file"`
	ShowCaller bool      `mapstructure:"show_caller" yaml:"show_caller"`
	Output     io.Writer `mapstructure:"-" yaml:"-"`
}

// ParseLevel validates a level name
func ParseLevel(s string) (LogLevel, error) {
	switch LogLevel(s) {
	case LogLevelQuiet, LogLevelNormal, LogLevelVerbose, LogLevelDebug:
		return LogLevel(s), nil
	case "":
		return LogLevelNormal, nil
	default:
		return "", fmt.Errorf("invalid log level %q, must be one of: quiet, normal, verbose, debug", s)
	}
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	if config.Output != nil {
		logger.SetOutput(config.Output)
	} else {
		logger.SetOutput(os.Stdout)
	}

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	setLogrusLevel(logger, config.Level)

	if config.ShowCaller {
		logger.SetReportCaller(true)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				filename := filepath.Base(f.File)
				return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", filename, f.Line)
			},
		})
	}

	if config.LogFile != "" {
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFile, err)
		}

		if config.Output == nil {
			logger.SetOutput(io.MultiWriter(os.Stdout, file))
		} else {
			logger.SetOutput(io.MultiWriter(config.Output, file))
		}
	}

	level := config.Level
	if level == "" {
		level = LogLevelNormal
	}

	return &Logger{
		logger: logger,
		entry:  logrus.NewEntry(logger),
		level:  level,
	}, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	logger, _ := NewLogger(Config{
		Level:  LogLevelNormal,
		Output: os.Stdout,
		Format: "text",
	})
	return logger
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	logger, _ := NewLogger(Config{Level: LogLevelQuiet, Output: io.Discard})
	return logger
}

func setLogrusLevel(logger *logrus.Logger, level LogLevel) {
	switch level {
	case LogLevelQuiet:
		logger.SetLevel(logrus.ErrorLevel)
	case LogLevelVerbose:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		logger.SetLevel(logrus.TraceLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
}

// WithRunID returns a child logger whose every line carries the run id
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		logger: l.logger,
		entry:  l.entry.WithField("run_id", runID),
		level:  l.level,
	}
}

// WithFields returns a log entry with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.entry.WithFields(fields)
}

// WithField returns a log entry with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.entry.WithField(key, value)
}

// LogDatabaseConnection logs database connection attempts
func (l *Logger) LogDatabaseConnection(driver, host, database string, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "database_connection",
		"driver":    driver,
		"host":      host,
		"database":  database,
		"duration":  duration.String(),
		"success":   err == nil,
	}

	if err != nil {
		fields["error"] = err.Error()
		l.entry.WithFields(fields).Error("Database connection failed")
		return
	}
	l.entry.WithFields(fields).Info("Database connection established")
}

// LogQueryExport logs the export of one query result to a local file
func (l *Logger) LogQueryExport(name, path string, rows int64, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "query_export",
		"query":     name,
		"duration":  duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.entry.WithFields(fields).Error("Query export failed")
		return
	}
	fields["path"] = path
	fields["rows"] = rows
	l.entry.WithFields(fields).Info("Query exported")
}

// LogTokenRequest logs a token endpoint round trip. errorCode and description
// are the provider-supplied values when the request was rejected.
func (l *Logger) LogTokenRequest(grant string, duration time.Duration, errorCode, description string, err error) {
	fields := logrus.Fields{
		"operation": "token_request",
		"grant":     grant,
		"duration":  duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		if errorCode != "" {
			fields["error_code"] = errorCode
		}
		if description != "" {
			fields["error_description"] = description
		}
		l.entry.WithFields(fields).Error("Access token request failed")
		return
	}
	l.entry.WithFields(fields).Info("Access token acquired")
}

// LogUpload logs one artifact upload
func (l *Logger) LogUpload(destination, name string, statusCode int, size int64, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":   "upload",
		"destination": destination,
		"file":        name,
		"duration":    duration.String(),
	}
	if statusCode != 0 {
		fields["status_code"] = statusCode
	}

	if err != nil {
		fields["error"] = err.Error()
		l.entry.WithFields(fields).Error("Upload failed")
		return
	}
	fields["size"] = size
	l.entry.WithFields(fields).Info("Upload completed")
}

// LogStateTransition logs an orchestrator state change
func (l *Logger) LogStateTransition(from, to string) {
	l.entry.WithFields(logrus.Fields{
		"operation": "state_transition",
		"from":      from,
		"to":        to,
	}).Debug("Backup state changed")
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.entry.Info(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.entry.Debug(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.entry.Warn(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.entry.Error(msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	setLogrusLevel(l.logger, level)
}

// IsLevelEnabled checks if a log level is enabled
func (l *Logger) IsLevelEnabled(level LogLevel) bool {
	switch level {
	case LogLevelQuiet:
		return l.logger.IsLevelEnabled(logrus.ErrorLevel)
	case LogLevelNormal:
		return l.logger.IsLevelEnabled(logrus.InfoLevel)
	case LogLevelVerbose:
		return l.logger.IsLevelEnabled(logrus.DebugLevel)
	case LogLevelDebug:
		return l.logger.IsLevelEnabled(logrus.TraceLevel)
	default:
		return false
	}
}

// LogOperationStart logs the start of an operation and returns a function to log completion
func (l *Logger) LogOperationStart(operation string, fields map[string]interface{}) func(error) {
	startTime := time.Now()

	logFields := logrus.Fields{
		"operation": operation,
		"status":    "started",
	}
	for k, v := range fields {
		logFields[k] = v
	}

	l.entry.WithFields(logFields).Debug("Operation started")

	return func(err error) {
		logFields["status"] = "completed"
		logFields["duration"] = time.Since(startTime).String()

		if err != nil {
			logFields["error"] = err.Error()
			logFields["success"] = false
			l.entry.WithFields(logFields).Error("Operation failed")
		} else {
			logFields["success"] = true
			l.entry.WithFields(logFields).Info("Operation completed")
		}
	}
}
