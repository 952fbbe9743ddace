package logger

import (
	"io"
	"time"
)

// Level 日志级别
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	// Disabled 关闭所有输出
	Disabled
)

// Field 结构化日志字段
type Field struct {
	Key   string
	Value any
}

// Logger 会话组件使用的日志接口
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithFields 返回携带固定字段的子日志
	WithFields(fields ...Field) Logger
	// SetLevel 设置日志级别
	SetLevel(level Level)
}

// Option 日志配置选项
type Option func(*Config)

// Config 日志配置
type Config struct {
	Level      Level
	Output     io.Writer
	TimeFormat string
	// Console 使用 zerolog 的人类可读输出
	Console bool
}

// WithLevel 设置日志级别
func WithLevel(level Level) Option {
	return func(cfg *Config) {
		cfg.Level = level
	}
}

// WithOutput 设置输出目标
func WithOutput(w io.Writer) Option {
	return func(cfg *Config) {
		cfg.Output = w
	}
}

// WithTimeFormat 设置时间格式
func WithTimeFormat(format string) Option {
	return func(cfg *Config) {
		cfg.TimeFormat = format
	}
}

// WithConsole 启用控制台格式
func WithConsole() Option {
	return func(cfg *Config) {
		cfg.Console = true
	}
}

func defaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		TimeFormat: time.RFC3339,
	}
}

// ParseLevel 解析命令行或配置中的级别名称
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "disabled", "off":
		return Disabled
	default:
		return InfoLevel
	}
}

// String 字符串字段
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int 整数字段
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 64 位整数字段
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Bool 布尔字段
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Time 时间字段
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value}
}

// Duration 时长字段
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// FieldError 错误字段
func FieldError(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any 任意类型字段
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

var defaultLogger Logger = NewLogger()

// GetDefaultLogger 获取默认日志实例
func GetDefaultLogger() Logger {
	return defaultLogger
}

// SetDefaultLogger 设置默认日志实例
func SetDefaultLogger(l Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Debug 使用默认日志输出调试信息
func Debug(msg string, fields ...Field) {
	defaultLogger.Debug(msg, fields...)
}

// Info 使用默认日志输出
func Info(msg string, fields ...Field) {
	defaultLogger.Info(msg, fields...)
}

// Warn 使用默认日志输出警告
func Warn(msg string, fields ...Field) {
	defaultLogger.Warn(msg, fields...)
}

// Error 使用默认日志输出错误
func Error(msg string, fields ...Field) {
	defaultLogger.Error(msg, fields...)
}
