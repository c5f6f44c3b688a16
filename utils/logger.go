package utils

import (
	"context"
	"io"
	"log/slog"
	"os"
)

const prefix = "[mangashark] "

// Logger is the logging surface every manager takes. The Ctx variants
// pick up default args attached to the context with WithDefaultArgs,
// so background tasks carry their correlation fields for free.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	DebugCtx(ctx context.Context, msg string, args ...any)
	InfoCtx(ctx context.Context, msg string, args ...any)
	WarnCtx(ctx context.Context, msg string, args ...any)
	ErrorCtx(ctx context.Context, msg string, args ...any)
}

type DefaultLogger struct {
	logger *slog.Logger
}

func NewDefaultLogger(level slog.Level) *DefaultLogger {
	return NewTextLogger(os.Stderr, level)
}

func NewTextLogger(w io.Writer, level slog.Level) *DefaultLogger {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	return &DefaultLogger{logger: logger}
}

func (d *DefaultLogger) log(ctx context.Context, level slog.Level, msg string, args []any) {
	if ctx != nil {
		args = append(args, ctxArgs(ctx)...)
		d.logger.Log(ctx, level, prefix+msg, args...)
		return
	}
	d.logger.Log(context.Background(), level, prefix+msg, args...)
}

func (d *DefaultLogger) Debug(msg string, args ...any) {
	d.log(nil, slog.LevelDebug, msg, args)
}

func (d *DefaultLogger) Info(msg string, args ...any) {
	d.log(nil, slog.LevelInfo, msg, args)
}

func (d *DefaultLogger) Warn(msg string, args ...any) {
	d.log(nil, slog.LevelWarn, msg, args)
}

func (d *DefaultLogger) Error(msg string, args ...any) {
	d.log(nil, slog.LevelError, msg, args)
}

func (d *DefaultLogger) DebugCtx(ctx context.Context, msg string, args ...any) {
	d.log(ctx, slog.LevelDebug, msg, args)
}

func (d *DefaultLogger) InfoCtx(ctx context.Context, msg string, args ...any) {
	d.log(ctx, slog.LevelInfo, msg, args)
}

func (d *DefaultLogger) WarnCtx(ctx context.Context, msg string, args ...any) {
	d.log(ctx, slog.LevelWarn, msg, args)
}

func (d *DefaultLogger) ErrorCtx(ctx context.Context, msg string, args ...any) {
	d.log(ctx, slog.LevelError, msg, args)
}

var defaultArgsKey int

func ctxArgs(ctx context.Context) []any {
	if args, ok := ctx.Value(&defaultArgsKey).([]any); ok {
		return args
	}
	return nil
}

// WithDefaultArgs attaches key-value pairs every Ctx log call on this
// context will carry.
func WithDefaultArgs(ctx context.Context, args ...any) context.Context {
	merged := append(ctxArgs(ctx), args...)
	return context.WithValue(ctx, &defaultArgsKey, merged)
}
