package logger

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// zerologLogger 使用 zerolog 实现 Logger
type zerologLogger struct {
	zlog  zerolog.Logger
	level *atomic.Int32
}

// NewLogger 创建 zerolog 日志
func NewLogger(opts ...Option) Logger {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Console {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: cfg.TimeFormat}
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat
	l := &zerologLogger{
		zlog:  zerolog.New(output).With().Timestamp().Logger(),
		level: new(atomic.Int32),
	}
	l.SetLevel(cfg.Level)
	return l
}

// Nop 丢弃所有日志，测试中常用
func Nop() Logger {
	l := &zerologLogger{
		zlog:  zerolog.Nop(),
		level: new(atomic.Int32),
	}
	l.SetLevel(Disabled)
	return l
}

func (l *zerologLogger) enabled(level Level) bool {
	return Level(l.level.Load()) <= level
}

func (l *zerologLogger) Debug(msg string, fields ...Field) {
	if l.enabled(DebugLevel) {
		write(l.zlog.Debug(), msg, fields)
	}
}

func (l *zerologLogger) Info(msg string, fields ...Field) {
	if l.enabled(InfoLevel) {
		write(l.zlog.Info(), msg, fields)
	}
}

func (l *zerologLogger) Warn(msg string, fields ...Field) {
	if l.enabled(WarnLevel) {
		write(l.zlog.Warn(), msg, fields)
	}
}

func (l *zerologLogger) Error(msg string, fields ...Field) {
	if l.enabled(ErrorLevel) {
		write(l.zlog.Error(), msg, fields)
	}
}

// WithFields 子日志共享父日志的级别
func (l *zerologLogger) WithFields(fields ...Field) Logger {
	ctx := l.zlog.With()
	for _, field := range fields {
		ctx = addFieldToContext(ctx, field)
	}
	return &zerologLogger{
		zlog:  ctx.Logger(),
		level: l.level,
	}
}

func (l *zerologLogger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func write(event *zerolog.Event, msg string, fields []Field) {
	for _, field := range fields {
		addFieldToEvent(event, field)
	}
	event.Msg(msg)
}

func addFieldToEvent(event *zerolog.Event, field Field) {
	switch v := field.Value.(type) {
	case string:
		event.Str(field.Key, v)
	case int:
		event.Int(field.Key, v)
	case int64:
		event.Int64(field.Key, v)
	case bool:
		event.Bool(field.Key, v)
	case time.Time:
		event.Time(field.Key, v)
	case time.Duration:
		event.Dur(field.Key, v)
	case error:
		event.AnErr(field.Key, v)
	default:
		event.Interface(field.Key, v)
	}
}

func addFieldToContext(ctx zerolog.Context, field Field) zerolog.Context {
	switch v := field.Value.(type) {
	case string:
		return ctx.Str(field.Key, v)
	case int:
		return ctx.Int(field.Key, v)
	case int64:
		return ctx.Int64(field.Key, v)
	case bool:
		return ctx.Bool(field.Key, v)
	case time.Time:
		return ctx.Time(field.Key, v)
	case time.Duration:
		return ctx.Dur(field.Key, v)
	case error:
		return ctx.AnErr(field.Key, v)
	default:
		return ctx.Interface(field.Key, v)
	}
}
