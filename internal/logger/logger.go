package logger

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

// Initialize sets up the logger with proper configuration
func Initialize() {
	Logger = logrus.New()

	// Set log level based on environment
	logLevel := os.Getenv("LOG_LEVEL")
	var level logrus.Level
	switch logLevel {
	case "DEBUG":
		level = logrus.DebugLevel
	case "INFO":
		level = logrus.InfoLevel
	case "WARN":
		level = logrus.WarnLevel
	case "ERROR":
		level = logrus.ErrorLevel
	default:
		level = logrus.InfoLevel
	}

	Logger.SetLevel(level)
	Logger.SetOutput(os.Stdout)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	Logger.WithFields(logrus.Fields{
		"log_level": level.String(),
	}).Info("Logging system initialized")
}

// GetLogger returns the configured logger instance
func GetLogger() *logrus.Logger {
	if Logger == nil {
		Initialize()
	}
	return Logger
}

// WithContext creates a logger with additional context fields
func WithContext(fields map[string]interface{}) *logrus.Entry {
	return GetLogger().WithFields(fields)
}

// WithSession creates a logger with conversation session context
func WithSession(sessionID string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"session_id": sessionID,
		"component":  "session_store",
	})
}

// WithLLM creates a logger with LLM gateway context
func WithLLM(operation string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"component": "llm_service",
		"operation": operation,
	})
}

// WithUpstream creates a logger with upstream query-client context
func WithUpstream(system string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"component": "upstream",
		"system":    system,
	})
}

// WithError creates a logger with error context
func WithError(err error, component string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"error":     err.Error(),
		"component": component,
	})
}

// Log levels convenience functions (with fields)
func Debug(msg string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	GetLogger().WithFields(fields).Debug(msg)
}

func Info(msg string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	GetLogger().WithFields(fields).Info(msg)
}

func Warn(msg string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	GetLogger().WithFields(fields).Warn(msg)
}

func Error(msg string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	GetLogger().WithFields(fields).Error(msg)
}

func Fatal(msg string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	GetLogger().WithFields(fields).Fatal(msg)
}
