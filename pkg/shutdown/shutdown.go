package shutdown

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

var shutdownLog = logrus.WithField("component", "shutdown")

// Handler 关闭处理函数
type Handler func(ctx context.Context) error

type namedHandler struct {
	name    string
	handler Handler
}

// Manager 优雅关闭管理器
// 回调按注册的逆序依次执行（后打开的资源先关闭）。
type Manager struct {
	callbacks []namedHandler
	mu        sync.Mutex
	done      bool
}

// NewManager 创建新的关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(name string, handler Handler) {
	if handler == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, namedHandler{name: name, handler: handler})
}

// Shutdown 执行所有关闭回调（只执行一次），返回第一个错误
// ctx 应该是一个带超时的 context，超时后剩余回调不再执行
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return nil
	}
	m.done = true
	callbacks := m.callbacks
	m.callbacks = nil
	m.mu.Unlock()

	var firstErr error
	for i := len(callbacks) - 1; i >= 0; i-- {
		cb := callbacks[i]
		if err := ctx.Err(); err != nil {
			shutdownLog.Warnf("关闭超时，跳过 %s: %v", cb.name, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := cb.handler(ctx); err != nil {
			shutdownLog.Warnf("关闭 %s 失败: %v", cb.name, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		shutdownLog.Debugf("已关闭 %s", cb.name)
	}
	return firstErr
}
