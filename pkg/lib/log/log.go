// Package log 提供统一日志接口
//
// 基于标准库 log/slog 封装。每个组件声明一个包级 logger：
//
//	var logger = log.Logger("dht/replication")
//	logger.Info("副本写入完成", "key", key, "replicas", n)
//
// 日志级别可通过环境变量 DHTSTORE_LOG_LEVEL（debug/info/warn/error）设置，
// 输出格式可通过 DHTSTORE_LOG_FORMAT（text/json）设置。
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// 环境变量
const (
	envLevel  = "DHTSTORE_LOG_LEVEL"
	envFormat = "DHTSTORE_LOG_FORMAT"
)

// level 全局动态级别
var level = new(slog.LevelVar)

// current 当前使用的 logger
var current atomic.Pointer[slog.Logger]

// SetDefault 设置默认 logger
func SetDefault(l *slog.Logger) {
	current.Store(l)
}

// Default 返回默认 logger
func Default() *slog.Logger {
	return current.Load()
}

// SetOutput 设置日志输出目标，保持当前格式配置
func SetOutput(w io.Writer) {
	current.Store(newLogger(w, formatFromEnv()))
}

// SetLevel 动态设置日志级别
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Discard 返回丢弃所有输出的 logger，主要用于测试
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时都读取当前默认 logger，
// 支持在运行时切换输出目标和级别。
type LazyLogger struct {
	component string
}

func (l *LazyLogger) base() *slog.Logger {
	return current.Load().With("component", l.component)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.base().Debug(msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.base().Info(msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.base().Warn(msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.base().Error(msg, args...)
}

// DebugContext 带 context 的 Debug 日志
func (l *LazyLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.base().DebugContext(ctx, msg, args...)
}

// WarnContext 带 context 的 Warn 日志
func (l *LazyLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.base().WarnContext(ctx, msg, args...)
}

// With 添加额外的属性
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return l.base().With(args...)
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

// ============================================================================
//                              工具函数
// ============================================================================

// TruncateID 安全截取 ID 用于日志显示
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}

// ParseLevel 解析级别字符串，无法识别时返回 Info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func formatFromEnv() string {
	return strings.ToLower(os.Getenv(envFormat))
}

func newLogger(w io.Writer, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ============================================================================
//                              初始化
// ============================================================================

func init() {
	level.Set(ParseLevel(os.Getenv(envLevel)))
	current.Store(newLogger(os.Stderr, formatFromEnv()))
}
