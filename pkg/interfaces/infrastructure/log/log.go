// Package log 定义网关与部署流程共用的日志接口
//
// 所有组件只依赖此接口，具体实现位于 internal/core/infrastructure/log（基于 zap）。
// 测试中可以使用 NewNop 返回的空实现。
package log

import "go.uber.org/zap"

// Logger 日志记录器接口
type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...interface{})

	Info(msg string)
	Infof(format string, args ...interface{})

	Warn(msg string)
	Warnf(format string, args ...interface{})

	Error(msg string)
	Errorf(format string, args ...interface{})

	// With 返回附带键值对字段的 Logger，参数按 key1, value1, key2, value2 排列
	With(args ...interface{}) Logger

	// Sync 刷新缓冲区
	Sync() error

	// GetZapLogger 获取底层 zap 记录器
	GetZapLogger() *zap.Logger
}
