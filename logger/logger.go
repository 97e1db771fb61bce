package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger is a zerolog logger carrying the service name and any fields
// added through the With methods.
type Logger struct {
	logger  zerolog.Logger
	service string
}

// Init configures the global logger and the global zerolog level.
func Init(cfg Config) {
	cfg.ApplyDefaults()
	name := cfg.ServiceName
	if name == "" {
		name = "mediaflow"
	}
	SetGlobalLogger(New(&cfg, name))
}

// New creates a logger from cfg. An unknown level falls back to info.
func New(cfg *Config, serviceName string) *Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var zl zerolog.Logger
	if isConsole(cfg.Format) {
		zl = newConsoleLogger(cfg, serviceName)
	} else {
		zl = zerolog.New(outputWriter(cfg.Output)).With().Str("service", serviceName).Logger()
	}
	if cfg.Timestamp {
		zl = zl.With().Timestamp().Logger()
	}
	if cfg.Caller {
		zl = zl.With().Caller().Logger()
	}
	return &Logger{logger: zl, service: serviceName}
}

// NewWithWriter creates a JSON logger writing to w at the given level.
func NewWithWriter(w io.Writer, level, serviceName string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return &Logger{
		logger:  zerolog.New(w).Level(lvl).With().Timestamp().Logger(),
		service: serviceName,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop(), service: "nop"}
}

type contextKey int

const (
	jobIDKey contextKey = iota
	pipelineKey
)

// ContextWithJob returns a context carrying the job id and pipeline name.
// Loggers derived with WithContext pick them up.
func ContextWithJob(ctx context.Context, jobID, pipeline string) context.Context {
	ctx = context.WithValue(ctx, jobIDKey, jobID)
	return context.WithValue(ctx, pipelineKey, pipeline)
}

// JobFromContext returns the job id stored by ContextWithJob.
func JobFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(jobIDKey).(string)
	return v, ok && v != ""
}

// WithContext adds the job, pipeline and trace ids found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	zc := l.logger.With()
	if v, ok := ctx.Value(jobIDKey).(string); ok && v != "" {
		zc = zc.Str(FieldJobID, v)
	}
	if v, ok := ctx.Value(pipelineKey).(string); ok && v != "" {
		zc = zc.Str(FieldPipeline, v)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		zc = zc.Str(FieldTraceID, sc.TraceID().String()).Str(FieldSpanID, sc.SpanID().String())
	}
	return &Logger{logger: zc.Logger(), service: l.service}
}

// WithComponent tags the logger with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{logger: l.logger.With().Str(FieldComponent, name).Logger(), service: l.service}
}

// WithFields returns a logger that adds fields to every entry.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{logger: l.logger.With().Fields(fields).Logger(), service: l.service}
}

// WithError returns a logger with an error field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger(), service: l.service}
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	emit(l.logger.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	emit(l.logger.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	emit(l.logger.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	emit(l.logger.Error(), msg, fields)
}

func emit(event *zerolog.Event, msg string, fields []map[string]interface{}) {
	for _, f := range fields {
		event = event.Fields(f)
	}
	event.Msg(msg)
}

var globalLogger *Logger

// SetGlobalLogger replaces the logger components derive from.
func SetGlobalLogger(l *Logger) {
	globalLogger = l
	resetComponents()
}

// GetGlobalLogger returns the global logger, creating a console logger
// at info level on first use.
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		cfg := Config{}
		cfg.ApplyDefaults()
		globalLogger = New(&cfg, "mediaflow")
	}
	return globalLogger
}

func isConsole(format string) bool {
	f := strings.ToLower(format)
	return f == "console" || f == "pretty"
}

func outputWriter(output string) io.Writer {
	switch strings.ToLower(output) {
	case "stderr":
		return os.Stderr
	case "discard":
		return io.Discard
	default:
		return os.Stdout
	}
}

var levelTags = map[string]string{
	"trace": "TRC", "debug": "DBG", "info": "INF", "warn": "WRN", "error": "ERR", "fatal": "FTL",
}

var levelColors = map[string]int{
	"debug": 36, "info": 32, "warn": 33, "error": 31, "fatal": 35,
}

func newConsoleLogger(cfg *Config, serviceName string) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        outputWriter(cfg.Output),
		TimeFormat: "15:04:05",
		NoColor:    cfg.NoColor,
		FormatLevel: func(i interface{}) string {
			lvl := fmt.Sprint(i)
			tag, ok := levelTags[lvl]
			if !ok {
				tag = strings.ToUpper(lvl)
			}
			tag = "[" + tag + "]"
			if color, ok := levelColors[lvl]; ok && !cfg.NoColor {
				tag = fmt.Sprintf("\033[%dm%s\033[0m", color, tag)
			}
			return tag
		},
		FormatFieldName: func(i interface{}) string { return fmt.Sprintf("%s:", i) },
	}).With().Str("service", serviceName).Logger()
}
