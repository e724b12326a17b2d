// Package recorder 按行追加写入采样日志
package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/betbot/feedlatency/internal/domain"
)

// SampleRecorder 采样记录器（流式写入，每条采样实时追加）
// 每行格式：receiveTimeMs,serverTimeMs,latencyMs，无表头。
type SampleRecorder struct {
	path string

	file   *os.File
	writer *csv.Writer
	lines  int

	mu sync.Mutex
}

// Open 打开（或创建）采样日志文件，追加模式
func Open(path string) (*SampleRecorder, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开采样日志失败: %w", err)
	}

	return &SampleRecorder{
		path:   path,
		file:   file,
		writer: csv.NewWriter(file),
	}, nil
}

// Path 日志文件路径
func (r *SampleRecorder) Path() string {
	return r.path
}

// Record 追加一条采样并立即刷盘
func (r *SampleRecorder) Record(s domain.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return fmt.Errorf("采样日志已关闭: %s", r.path)
	}

	record := []string{
		formatMs(s.ReceiveTimeMs),
		formatMs(s.ServerTimeMs),
		formatMs(s.LatencyMs),
	}
	if err := r.writer.Write(record); err != nil {
		return fmt.Errorf("写入采样失败: %w", err)
	}
	r.writer.Flush()
	if err := r.writer.Error(); err != nil {
		return fmt.Errorf("刷新采样失败: %w", err)
	}
	r.lines++
	return nil
}

// Lines 已写入行数
func (r *SampleRecorder) Lines() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lines
}

// Close 刷新并关闭文件（可重复调用）
func (r *SampleRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	r.writer.Flush()
	werr := r.writer.Error()
	cerr := r.file.Close()
	r.file = nil
	r.writer = nil

	if werr != nil {
		return fmt.Errorf("采样日志 writer 错误 (%s): %w", r.path, werr)
	}
	if cerr != nil {
		return fmt.Errorf("关闭采样日志失败 (%s): %w", r.path, cerr)
	}
	return nil
}

// formatMs 十进制、最短且可还原的浮点表示
func formatMs(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
