package logger

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// Logger writes one JSON line per event with service, hostname, action and request_id.
type Logger struct {
	service   string
	requestID string
	zl        *zap.Logger
}

func New(service string) *Logger { return NewWithLevel(service, "info") }

func NewWithLevel(service, level string) *Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	zl, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		zl = zap.NewNop()
	}
	return NewWithZap(service, zl)
}

// NewWithZap wraps an existing zap logger, mostly for tests with an observer core.
func NewWithZap(service string, zl *zap.Logger) *Logger {
	return &Logger{
		service: service,
		zl:      zl.With(zap.String("service", service), zap.String("hostname", hostname())),
	}
}

// WithRequestID returns a copy of l that stamps every entry with id.
func (l *Logger) WithRequestID(id string) *Logger {
	cp := *l
	cp.requestID = id
	return &cp
}

// Ctx picks the request id stored in ctx, if any.
func (l *Logger) Ctx(ctx context.Context) *Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		return l.WithRequestID(id)
	}
	return l
}

func (l *Logger) Info(action string, fields map[string]any) {
	l.log(zapcore.InfoLevel, action, fields, nil)
}

func (l *Logger) Debug(action string, fields map[string]any) {
	l.log(zapcore.DebugLevel, action, fields, nil)
}

func (l *Logger) Warn(action string, fields map[string]any) {
	l.log(zapcore.WarnLevel, action, fields, nil)
}

func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.log(zapcore.ErrorLevel, action, fields, err)
}

func (l *Logger) Sync() { _ = l.zl.Sync() }

func (l *Logger) log(level zapcore.Level, action string, fields map[string]any, err error) {
	ce := l.zl.Check(level, action)
	if ce == nil {
		return
	}
	zf := make([]zap.Field, 0, len(fields)+3)
	zf = append(zf, zap.String("action", action), zap.String("request_id", l.requestID))

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	if err != nil {
		zf = append(zf, zap.Any("error", map[string]any{"msg": err.Error(), "type": fmt.Sprintf("%T", err)}))
	}
	ce.Write(zf...)
}

func NewRequestID() string { return uuid.NewString() }

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func hostname() string { h, _ := os.Hostname(); return h }
