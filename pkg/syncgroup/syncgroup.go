package syncgroup

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

type syncGroupFunc func()

// SyncGroup 是 sync.WaitGroup 的包装器，自动管理 Add() 和 Done()
// 每个任务独立 recover：一个任务 panic 不会影响其他任务，panic 记录在 Panics() 中。
type SyncGroup struct {
	wg sync.WaitGroup

	mu     sync.Mutex
	funcs  []syncGroupFunc
	panics []error
}

// NewSyncGroup 创建新的 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add 添加一个任务，Run() 时启动
func (w *SyncGroup) Add(fn syncGroupFunc) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.funcs = append(w.funcs, fn)
}

// Run 启动所有已添加的任务并清空待启动列表
func (w *SyncGroup) Run() {
	w.mu.Lock()
	fns := w.funcs
	w.funcs = nil
	w.mu.Unlock()

	for _, fn := range fns {
		w.wg.Add(1)
		go w.run(fn)
	}
}

func (w *SyncGroup) run(fn syncGroupFunc) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("task panic: %v", r)
			logrus.WithField("component", "syncgroup").Errorf("%v\n%s", err, debug.Stack())
			w.mu.Lock()
			w.panics = append(w.panics, err)
			w.mu.Unlock()
		}
		w.wg.Done()
	}()
	fn()
}

// Panics 已捕获的任务 panic
func (w *SyncGroup) Panics() []error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]error(nil), w.panics...)
}

// Wait 等待所有任务完成
func (w *SyncGroup) Wait() {
	w.wg.Wait()
}

// WaitAndClear 等待所有任务完成并清空状态，之后可以再次 Add/Run
func (w *SyncGroup) WaitAndClear() {
	w.wg.Wait()

	w.mu.Lock()
	w.funcs = nil
	w.panics = nil
	w.mu.Unlock()
}
