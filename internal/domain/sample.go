package domain

import (
	"errors"
	"sync"
)

// ErrSeriesFrozen 序列冻结后仍尝试追加
var ErrSeriesFrozen = errors.New("latency series is frozen")

// Sample 单次延迟采样（毫秒）
type Sample struct {
	ReceiveTimeMs float64 `json:"receive_time_ms"` // 本地接收时间
	ServerTimeMs  float64 `json:"server_time_ms"`  // 归一化后的服务器时间
	LatencyMs     float64 `json:"latency_ms"`      // ReceiveTimeMs - ServerTimeMs
}

// NewSample 创建采样，延迟不做任何舍入
func NewSample(receiveTimeMs, serverTimeMs float64) Sample {
	return Sample{
		ReceiveTimeMs: receiveTimeMs,
		ServerTimeMs:  serverTimeMs,
		LatencyMs:     receiveTimeMs - serverTimeMs,
	}
}

// LatencySeries 按到达顺序排列的采样序列
// 采样期间只追加，采样结束后冻结为只读。
type LatencySeries struct {
	feed string

	mu      sync.RWMutex
	samples []Sample
	frozen  bool
}

// NewLatencySeries 创建空序列
func NewLatencySeries(feed string) *LatencySeries {
	return &LatencySeries{feed: feed}
}

// Feed 返回所属数据源名称
func (s *LatencySeries) Feed() string {
	return s.feed
}

// Append 追加采样
func (s *LatencySeries) Append(sample Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return ErrSeriesFrozen
	}
	s.samples = append(s.samples, sample)
	return nil
}

// Freeze 冻结序列（可重复调用）
func (s *LatencySeries) Freeze() {
	s.mu.Lock()
	s.frozen = true
	s.mu.Unlock()
}

// Len 采样数量
func (s *LatencySeries) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// Samples 返回采样副本（到达顺序）
func (s *LatencySeries) Samples() []Sample {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Latencies 返回延迟值（到达顺序）
func (s *LatencySeries) Latencies() []float64 {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, len(s.samples))
	for i, sample := range s.samples {
		out[i] = sample.LatencyMs
	}
	return out
}
