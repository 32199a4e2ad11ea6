// Package logger is the structured logging layer: a thin logrus wrapper
// with JSON output, caller reporting, and per-venue warn and error
// counters feeding the runtime report.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Fields carries structured log fields.
type Fields map[string]interface{}

// Log wraps a logrus logger configured for tradekit output.
type Log struct {
	*logrus.Logger
}

// Entry wraps logrus.Entry so chained calls stay inside this package and
// warn and error counters are fed.
type Entry struct {
	*logrus.Entry
}

var globalLogger = New()

// New builds a logger with JSON output, caller reporting and the level
// taken from LOG_LEVEL (info when unset or unparsable).
func New() *Log {
	l := logrus.New()
	l.SetReportCaller(true)
	l.SetLevel(parseLevel(os.Getenv("LOG_LEVEL")))
	l.SetFormatter(jsonFormatter())
	l.AddHook(&callerHook{})
	return &Log{Logger: l}
}

// GetLogger returns the process-wide logger shared by the venue clients,
// the execution controller and the journal.
func GetLogger() *Log {
	return globalLogger
}

func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func shortCaller(f *runtime.Frame) (string, string) {
	return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
}

func jsonFormatter() logrus.Formatter {
	return &logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
		CallerPrettyfier: shortCaller,
	}
}

func textFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		FullTimestamp:    true,
		TimestampFormat:  time.RFC3339,
		CallerPrettyfier: shortCaller,
	}
}

// Configure applies the logging section of the configuration. output is
// "stdout", "stderr" or a file path; file output rotates through
// lumberjack when maxAge (days) is positive. LOG_LEVEL overrides the
// configured level.
func (l *Log) Configure(level, format, output string, maxAge int) error {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	l.SetLevel(lvl)
	l.SetReportCaller(true)

	switch format {
	case "", "json":
		l.SetFormatter(jsonFormatter())
	case "text":
		l.SetFormatter(textFormatter())
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	switch output {
	case "", "stdout":
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		if maxAge > 0 {
			l.SetOutput(&lumberjack.Logger{
				Filename: output,
				MaxAge:   maxAge,
				MaxSize:  100,
				Compress: true,
			})
			return nil
		}
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", output, err)
		}
		l.SetOutput(file)
	}
	return nil
}

func (l *Log) WithComponent(component string) *Entry {
	return &Entry{Entry: l.Logger.WithField("component", component)}
}

func (l *Log) WithFields(fields Fields) *Entry {
	return &Entry{Entry: l.Logger.WithFields(logrus.Fields(fields))}
}

func (l *Log) WithError(err error) *Entry {
	return &Entry{Entry: l.Logger.WithError(err)}
}

func (e *Entry) WithComponent(component string) *Entry {
	return &Entry{Entry: e.Entry.WithField("component", component)}
}

func (e *Entry) WithFields(fields Fields) *Entry {
	return &Entry{Entry: e.Entry.WithFields(logrus.Fields(fields))}
}

func (e *Entry) WithError(err error) *Entry {
	return &Entry{Entry: e.Entry.WithError(err)}
}

// Warn logs at warn level and feeds the counter of the venue the entry
// belongs to.
func (e *Entry) Warn(args ...interface{}) {
	recordWarn(e.counterTag())
	e.Entry.Warn(args...)
}

// Error logs at error level and feeds the counter of the venue the entry
// belongs to.
func (e *Entry) Error(args ...interface{}) {
	recordError(e.counterTag())
	e.Entry.Error(args...)
}

// counterTag resolves which counter bucket a warn or error belongs to.
// Venue clients tag their entries with an exchange field; entries without
// one are attributed to their component.
func (e *Entry) counterTag() string {
	if v, ok := e.Entry.Data["exchange"].(string); ok {
		return v
	}
	if v, ok := e.Entry.Data["component"].(string); ok {
		return v
	}
	return "general"
}
