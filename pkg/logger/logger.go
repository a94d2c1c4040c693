// Package logger wraps logrus with the console's two standard
// constructors: a configurable root logger built from LoggingConfig, and a
// per-component logger that tags every entry with the component's name.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Logger.
type Logger struct {
	*logrus.Logger
}

// LoggingConfig controls the root logger's level, format, and destination.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePrefix string `mapstructure:"file_prefix"`
}

// componentHook tags every entry passing through a logger with the name of
// the component that created it, so log lines from different services
// interleaved on stdout stay attributable.
type componentHook struct {
	component string
}

func (h *componentHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *componentHook) Fire(entry *logrus.Entry) error {
	entry.Data["component"] = h.component
	return nil
}

// New builds the console's root logger from cfg.
func New(cfg LoggingConfig) *Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(cfg.Output) {
	case "file":
		if cfg.FilePrefix == "" {
			cfg.FilePrefix = "incident-console"
		}
		logDir := "logs"
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Errorf("failed to create log directory: %v", err)
			break
		}
		logPath := filepath.Join(logDir, cfg.FilePrefix+".log")
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Errorf("failed to open log file %s: %v", logPath, err)
			break
		}
		log.SetOutput(io.MultiWriter(os.Stdout, file))
	default:
		log.SetOutput(os.Stdout)
	}

	return &Logger{Logger: log}
}

// NewDefault builds a text/stdout/info-level logger whose every entry
// carries component=name, for use inside a single service's constructor.
func NewDefault(name string) *Logger {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
	log.AddHook(&componentHook{component: name})

	return &Logger{Logger: log}
}

// WithField returns a new log entry with a field.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithFields returns a new log entry with multiple fields.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.Logger.WithFields(fields)
}
