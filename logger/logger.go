package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// FormatPretty is an alias of the console format.
const FormatPretty = "pretty"

// envPrefix matches the config loader's prefix so ASYNCHTTP_LOG_LEVEL means
// the same thing before and after a config file is loaded.
const envPrefix = "ASYNCHTTP_LOG_"

// Logger wraps zerolog.Logger with additional context.
type Logger struct {
	logger  zerolog.Logger
	service string
}

// Init initializes the global logger from config.
func Init(cfg Config) {
	cfg.ApplyDefaults()
	globalLogger = New(&cfg, "default")
	log.Logger = globalLogger.logger
}

// New creates a new logger instance with configuration.
func New(cfg *Config, serviceName string) *Logger {
	return NewWithWriter(cfg, serviceName, outputWriter(cfg.Output))
}

// NewWithWriter creates a logger writing to w instead of the configured output.
func NewWithWriter(cfg *Config, serviceName string, w io.Writer) *Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var zl zerolog.Logger
	if strings.ToLower(cfg.Format) == "console" || strings.ToLower(cfg.Format) == FormatPretty {
		zl = newConsoleLogger(cfg, serviceName, w)
	} else {
		zl = zerolog.New(w)
	}
	zl = zl.Level(level)

	if cfg.Timestamp {
		zl = zl.With().Timestamp().Logger()
	}
	if cfg.Caller {
		zl = zl.With().Caller().Logger()
	}

	return &Logger{
		logger:  zl,
		service: serviceName,
	}
}

// NewDefault creates a logger with default configuration.
func NewDefault(serviceName string) *Logger {
	cfg := &Config{
		Level:     "info",
		Format:    "console",
		Output:    "stdout",
		NoColor:   false,
		Timestamp: true,
	}
	return New(cfg, serviceName)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// NewFromEnv creates a logger configured from ASYNCHTTP_LOG_LEVEL,
// ASYNCHTTP_LOG_FORMAT, ASYNCHTTP_LOG_OUTPUT, ASYNCHTTP_LOG_NO_COLOR and
// ASYNCHTTP_LOG_TIMESTAMP, for use before configuration is loaded.
func NewFromEnv(serviceName string) *Logger {
	cfg := &Config{
		Level:     envOr("LEVEL", "info"),
		Format:    envOr("FORMAT", "console"),
		Output:    envOr("OUTPUT", "stdout"),
		NoColor:   envBool("NO_COLOR", false),
		Timestamp: envBool("TIMESTAMP", true),
	}
	return New(cfg, serviceName)
}

// WithContext returns a logger enriched with the active span and operation
// ID carried by ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	zc := l.logger.With()

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		zc = zc.Str(FieldTraceID, sc.TraceID().String()).
			Str(FieldSpanID, sc.SpanID().String())
	}
	if id, ok := OperationID(ctx); ok {
		zc = zc.Str(FieldOperationID, id)
	}

	return &Logger{logger: zc.Logger(), service: l.service}
}

type operationIDKey struct{}

// ContextWithOperationID returns a copy of ctx carrying id.
func ContextWithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationIDKey{}, id)
}

// OperationID returns the operation ID stored in ctx, if any.
func OperationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(operationIDKey{}).(string)
	return id, ok && id != ""
}

// WithComponent returns a logger tagged with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		logger:  l.logger.With().Str(FieldComponent, name).Logger(),
		service: l.service,
	}
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	zc := l.logger.With()
	for k, v := range fields {
		zc = zc.Interface(k, v)
	}
	return &Logger{logger: zc.Logger(), service: l.service}
}

// WithError returns a logger with an error field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		logger:  l.logger.With().Err(err).Logger(),
		service: l.service,
	}
}

// GetLogger returns the underlying zerolog.Logger.
func (l *Logger) GetLogger() zerolog.Logger {
	return l.logger
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	event := l.logger.Debug()
	addFields(event, fields...)
	event.Msg(msg)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	event := l.logger.Info()
	addFields(event, fields...)
	event.Msg(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	event := l.logger.Warn()
	addFields(event, fields...)
	event.Msg(msg)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	event := l.logger.Error()
	addFields(event, fields...)
	event.Msg(msg)
}

// --- Global logger ---

var globalLogger *Logger

// SetGlobalLogger sets the global logger instance.
func SetGlobalLogger(l *Logger) { globalLogger = l }

// GetGlobalLogger returns the global logger, creating a default one if needed.
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		globalLogger = NewDefault("default")
	}
	return globalLogger
}

// Package-level convenience functions delegate to the global logger.

func Debug(msg string, fields ...map[string]interface{}) {
	GetGlobalLogger().Debug(msg, fields...)
}

func Info(msg string, fields ...map[string]interface{}) {
	GetGlobalLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...map[string]interface{}) {
	GetGlobalLogger().Warn(msg, fields...)
}

func Error(msg string, fields ...map[string]interface{}) {
	GetGlobalLogger().Error(msg, fields...)
}

// WithContext returns a context-enriched logger from the global logger.
func WithContext(ctx context.Context) *Logger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithComponent returns a component-tagged logger from the global logger.
func WithComponent(name string) *Logger {
	return GetGlobalLogger().WithComponent(name)
}

// --- internal helpers ---

func addFields(event *zerolog.Event, fields ...map[string]interface{}) {
	for _, fm := range fields {
		for k, v := range fm {
			event.Interface(k, v)
		}
	}
}

func outputWriter(output string) io.Writer {
	switch strings.ToLower(output) {
	case "stderr":
		return os.Stderr
	default:
		return os.Stdout
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(envPrefix + key))
	if err != nil {
		return fallback
	}
	return b
}

var levelTags = map[string]struct{ tag, color string }{
	"TRACE": {"[TRC]", "\033[90m"},
	"DEBUG": {"[DBG]", "\033[36m"},
	"INFO":  {"[INF]", "\033[32m"},
	"WARN":  {"[WRN]", "\033[33m"},
	"ERROR": {"[ERR]", "\033[31m"},
	"PANIC": {"[PNC]", "\033[35m"},
}

const colorReset = "\033[0m"

// consoleLevel renders "[SVC][LVL]", where SVC is the first three letters of
// the service name.
func consoleLevel(cfg *Config, serviceName string, level string) string {
	lvl := strings.ToUpper(level)
	out := "[" + lvl + "]"
	if t, ok := levelTags[lvl]; ok {
		out = t.tag
		if !cfg.NoColor {
			out = t.color + out + colorReset
		}
	}
	if serviceName == "" || serviceName == "default" || len(serviceName) < 3 {
		return out
	}
	tag := "[" + strings.ToUpper(serviceName[:3]) + "]"
	if !cfg.NoColor {
		tag = "\033[34m" + tag + colorReset
	}
	return tag + out
}

func newConsoleLogger(cfg *Config, serviceName string, w io.Writer) zerolog.Logger {
	str := func(i interface{}) string {
		if i == nil {
			return ""
		}
		return fmt.Sprintf("%s", i)
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:              w,
		TimeFormat:       "15:04:05",
		NoColor:          cfg.NoColor,
		FormatLevel:      func(i interface{}) string { return consoleLevel(cfg, serviceName, str(i)) },
		FormatMessage:    str,
		FormatFieldName:  func(i interface{}) string { return str(i) + ":" },
		FormatFieldValue: str,
	}).With().Timestamp().Logger()
}
