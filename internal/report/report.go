// Package report 生成延迟对比的文本报告
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/feedlatency/internal/analysis"
	"github.com/betbot/feedlatency/internal/domain"
)

const (
	lineWidth = 70
	FileName  = "report.txt"
)

// FeedSection 报告中的单个数据源
type FeedSection struct {
	Name    string
	Stats   *domain.Stats // nil 表示无数据
	Elapsed time.Duration // 实际采样时长，0 表示未开始采样

	Messages       int
	Keepalives     int
	Timeouts       int
	ZeroTimestamps int

	Note string // 提前结束或被跳过的原因
}

// Input 报告输入
type Input struct {
	RunID       string
	Symbol      string
	Duration    time.Duration
	GeneratedAt time.Time
	Feeds       []FeedSection // 对比顺序：第一方在前
	Comparison  *analysis.Comparison
}

var criterionLabels = map[string]string{
	"std_dev":     "稳定性 (标准差)",
	"jitter_mean": "抖动 (平均)",
	"range":       "波动范围",
	"rate":        "采样速率",
}

// Render 渲染纯文本报告
func Render(in Input) string {
	var b strings.Builder
	rule := strings.Repeat("=", lineWidth)
	thin := strings.Repeat("-", lineWidth)

	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "📊 WebSocket 延迟对比报告 - %s\n", in.Symbol)
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "运行 ID:    %s\n", in.RunID)
	if !in.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "生成时间:   %s\n", in.GeneratedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "采样时长:   %s 秒\n", seconds(in.Duration))

	for _, f := range in.Feeds {
		b.WriteString("\n")
		writeFeed(&b, f, thin)
	}

	b.WriteString("\n")
	writeComparison(&b, in, rule)
	return b.String()
}

func writeFeed(b *strings.Builder, f FeedSection, thin string) {
	fmt.Fprintf(b, "%s\n", thin)
	fmt.Fprintf(b, "📡 %s\n", f.Name)
	fmt.Fprintf(b, "%s\n", thin)

	if f.Elapsed > 0 {
		fmt.Fprintf(b, "实际采样:   %s 秒\n", seconds(f.Elapsed))
	}
	fmt.Fprintf(b, "消息数:     %d (心跳 %d, 超时 %d, 空时间戳 %d)\n",
		f.Messages, f.Keepalives, f.Timeouts, f.ZeroTimestamps)
	if f.Note != "" {
		fmt.Fprintf(b, "备注:       %s\n", f.Note)
	}

	s := f.Stats
	if s == nil {
		b.WriteString("⚠️ 无数据\n")
		return
	}

	fmt.Fprintf(b, "样本数:     %d\n", s.Count)
	fmt.Fprintf(b, "采样速率:   %s 条/秒\n", num(s.Rate))

	b.WriteString("\n原始延迟 (ms):\n")
	fmt.Fprintf(b, "  平均值:   %s\n", num(s.Mean))
	fmt.Fprintf(b, "  中位数:   %s\n", num(s.Median))
	fmt.Fprintf(b, "  最小值:   %s\n", num(s.Min))
	fmt.Fprintf(b, "  最大值:   %s\n", num(s.Max))
	fmt.Fprintf(b, "  P5:       %s\n", num(s.P5))
	fmt.Fprintf(b, "  P95:      %s\n", num(s.P95))
	fmt.Fprintf(b, "  P99:      %s\n", num(s.P99))

	b.WriteString("\n稳定性 (ms):\n")
	fmt.Fprintf(b, "  标准差:   %s\n", num(s.StdDev))
	fmt.Fprintf(b, "  波动范围: %s\n", num(s.Range))
	fmt.Fprintf(b, "  抖动平均: %s\n", num(s.JitterMean))
	fmt.Fprintf(b, "  抖动P95:  %s\n", num(s.JitterP95))
	fmt.Fprintf(b, "  抖动最大: %s\n", num(s.JitterMax))

	b.WriteString("\n时钟估算 (ms):\n")
	fmt.Fprintf(b, "  时钟偏移: %s\n", num(s.ClockOffsetEstimate))
	fmt.Fprintf(b, "  真实延迟: %s\n", num(s.TrueLatencyEstimate))
}

func writeComparison(b *strings.Builder, in Input, rule string) {
	fmt.Fprintf(b, "%s\n", rule)
	b.WriteString("🏁 对比结论\n")
	fmt.Fprintf(b, "%s\n", rule)

	c := in.Comparison
	if c == nil || c.Outcome == analysis.OutcomeNoData {
		b.WriteString("两个数据源都没有有效数据，无法对比\n")
		return
	}
	if c.Outcome == analysis.OutcomeSingleValid {
		fmt.Fprintf(b, "只有 %s 产生了有效数据，无法对比\n", c.ValidFeed)
		return
	}

	for _, cr := range c.Criteria {
		label := criterionLabels[cr.Name]
		if label == "" {
			label = cr.Name
		}
		fmt.Fprintf(b, "%-12s %s=%s  %s=%s  → %s (+%d)\n",
			label, c.First, num(cr.First), c.Second, num(cr.Second), cr.Winner, cr.Weight)
	}

	if first, second := feedStats(in, c.First), feedStats(in, c.Second); first != nil && second != nil {
		fmt.Fprintf(b, "\n采样速率对比: %s %s 条/秒 vs %s %s 条/秒 (%s 条)，按实际窗口 %s 更快\n",
			c.First, num(first.Rate), c.Second, num(second.Rate), diff(first.Count, second.Count), c.CriterionWinner("rate"))
	}

	score := c.Score
	fmt.Fprintf(b, "\n总分 (满分 %d): %s %d vs %s %d\n",
		analysis.TotalWeight, c.First, score.PerFeedScore[c.First], c.Second, score.PerFeedScore[c.Second])
	if score.IsTie() {
		b.WriteString("推荐: 两者表现相当 (平局)\n")
		return
	}
	fmt.Fprintf(b, "推荐: %s\n", score.Winner)
}

func feedStats(in Input, name string) *domain.Stats {
	for _, f := range in.Feeds {
		if f.Name == name {
			return f.Stats
		}
	}
	return nil
}

// WriteFile 写入 <dir>/report.txt，返回文件路径
func WriteFile(dir string, in Input) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(Render(in)), 0644); err != nil {
		return "", fmt.Errorf("写入报告失败: %w", err)
	}
	return path, nil
}

// num 两位小数，NaN/Inf 输出 "-"
func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

func seconds(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return decimal.NewFromFloat(d.Seconds()).StringFixed(1)
}

func diff(a, b int) string {
	d := a - b
	if d > 0 {
		return fmt.Sprintf("+%d", d)
	}
	return fmt.Sprintf("%d", d)
}
