// Package logger provides structured JSON logging for the routing core.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string log level, defaulting to INFO.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "DEBUG", "debug":
		return DEBUG, nil
	case "INFO", "info":
		return INFO, nil
	case "WARN", "warn", "WARNING", "warning":
		return WARN, nil
	case "ERROR", "error":
		return ERROR, nil
	case "FATAL", "fatal":
		return FATAL, nil
	default:
		return INFO, fmt.Errorf("unknown log level: %s", s)
	}
}

// Entry is one structured log record.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Caller    string         `json:"caller,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Logger writes structured entries. Derived loggers share the output and
// level of their parent.
type Logger struct {
	mu            sync.RWMutex
	level         Level
	output        io.Writer
	fields        map[string]any
	component     string
	jsonFormat    bool
	includeCaller bool
}

var (
	globalLogger *Logger
	once         sync.Once
)

// New creates a logger with defaults: INFO, stdout, JSON.
func New() *Logger {
	return &Logger{
		level:         INFO,
		output:        os.Stdout,
		fields:        make(map[string]any),
		jsonFormat:    true,
		includeCaller: false,
	}
}

// Global returns the process-wide logger.
func Global() *Logger {
	once.Do(func() { globalLogger = New() })
	return globalLogger
}

// SetLevel sets the minimum level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// SetJSONFormat toggles JSON vs plain text output.
func (l *Logger) SetJSONFormat(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jsonFormat = enabled
}

// WithComponent returns a derived logger tagged with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	nl := l.clone()
	nl.component = name
	return nl
}

// WithField returns a derived logger with one extra field.
func (l *Logger) WithField(key string, value any) *Logger {
	nl := l.clone()
	nl.fields[key] = value
	return nl
}

// WithFields returns a derived logger with extra fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	nl := l.clone()
	for k, v := range fields {
		nl.fields[k] = v
	}
	return nl
}

func (l *Logger) clone() *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	nl := &Logger{
		level:         l.level,
		output:        l.output,
		fields:        make(map[string]any, len(l.fields)+1),
		component:     l.component,
		jsonFormat:    l.jsonFormat,
		includeCaller: l.includeCaller,
	}
	for k, v := range l.fields {
		nl.fields[k] = v
	}
	return nl
}

func (l *Logger) log(level Level, msg string, err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if level < l.level {
		return
	}

	entry := Entry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Message:   msg,
		Component: l.component,
		Fields:    l.fields,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if l.includeCaller {
		if _, file, line, ok := runtime.Caller(2); ok {
			entry.Caller = fmt.Sprintf("%s:%d", file, line)
		}
	}
	if reqID, ok := l.fields["request_id"]; ok {
		entry.RequestID = fmt.Sprintf("%v", reqID)
	}

	if l.jsonFormat {
		data, merr := json.Marshal(entry)
		if merr != nil {
			log.Printf("logger: marshal entry: %v", merr)
			return
		}
		fmt.Fprintln(l.output, string(data))
	} else {
		out := fmt.Sprintf("[%s] [%s]", entry.Timestamp.Format("2006-01-02 15:04:05"), entry.Level)
		if entry.Component != "" {
			out += fmt.Sprintf(" [%s]", entry.Component)
		}
		out += " " + entry.Message
		if entry.Error != "" {
			out += " error=" + entry.Error
		}
		for k, v := range entry.Fields {
			out += fmt.Sprintf(" %s=%v", k, v)
		}
		fmt.Fprintln(l.output, out)
	}

	if level == FATAL {
		os.Exit(1)
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) { l.log(DEBUG, msg, nil) }

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...any) { l.log(DEBUG, fmt.Sprintf(format, args...), nil) }

// Info logs an info message.
func (l *Logger) Info(msg string) { l.log(INFO, msg, nil) }

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...any) { l.log(INFO, fmt.Sprintf(format, args...), nil) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string) { l.log(WARN, msg, nil) }

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, args ...any) { l.log(WARN, fmt.Sprintf(format, args...), nil) }

// Error logs an error message.
func (l *Logger) Error(msg string, err error) { l.log(ERROR, msg, err) }

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...any) { l.log(ERROR, fmt.Sprintf(format, args...), nil) }

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(msg string, err error) { l.log(FATAL, msg, err) }
