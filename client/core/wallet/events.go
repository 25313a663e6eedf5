package wallet

import (
	"fmt"
	"sync"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"
)

// ChainEvents 链切换事件分发
//
// 每个订阅使用独立 topic（chainChanged:<uuid>），取消订阅只移除对应回调。
type ChainEvents struct {
	bus    evbus.Bus
	mu     sync.Mutex
	topics map[string]struct{}
}

// NewChainEvents 创建事件分发器
func NewChainEvents() *ChainEvents {
	return &ChainEvents{
		bus:    evbus.New(),
		topics: make(map[string]struct{}),
	}
}

// Subscribe 订阅链切换
func (e *ChainEvents) Subscribe(handler ChainChangedHandler) (func(), error) {
	if handler == nil {
		return nil, fmt.Errorf("nil %s handler", EventChainChanged)
	}

	topic := EventChainChanged + ":" + uuid.New().String()
	fn := func(chainID string) { handler(chainID) }
	if err := e.bus.Subscribe(topic, fn); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", EventChainChanged, err)
	}

	e.mu.Lock()
	e.topics[topic] = struct{}{}
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.topics, topic)
			e.mu.Unlock()
			_ = e.bus.Unsubscribe(topic, fn)
		})
	}, nil
}

// Publish 同步通知所有订阅者
func (e *ChainEvents) Publish(chainID string) {
	e.mu.Lock()
	topics := make([]string, 0, len(e.topics))
	for topic := range e.topics {
		topics = append(topics, topic)
	}
	e.mu.Unlock()

	for _, topic := range topics {
		e.bus.Publish(topic, chainID)
	}
}

// Len 当前订阅数
func (e *ChainEvents) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.topics)
}
