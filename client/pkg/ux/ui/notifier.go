package ui

import "sync"

// Notifier 面向用户的提示（对应浏览器中的 alert）
type Notifier interface {
	Notify(message string)
}

// NotifierFunc 函数适配器
type NotifierFunc func(message string)

// Notify 实现 Notifier
func (f NotifierFunc) Notify(message string) { f(message) }

// AlertNotifier 以警告样式显示提示
type AlertNotifier struct {
	components Components
}

// NewAlertNotifier 创建提示器
func NewAlertNotifier(components Components) *AlertNotifier {
	return &AlertNotifier{components: components}
}

// Notify 实现 Notifier
func (n *AlertNotifier) Notify(message string) {
	_ = n.components.ShowWarning(message)
}

// RecordingNotifier 记录所有提示，便于断言
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

// Notify 实现 Notifier
func (n *RecordingNotifier) Notify(message string) {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
}

// Messages 已记录的提示
func (n *RecordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string) {}

// NopNotifier 丢弃所有提示
func NopNotifier() Notifier { return nopNotifier{} }
