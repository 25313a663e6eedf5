package ui

// Logger 组件的调试日志，zap 实现的 logiface.Logger 直接满足
type Logger interface {
	Debugf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...interface{}) {}

// NoopLogger 丢弃所有日志
func NoopLogger() Logger { return noopLogger{} }
