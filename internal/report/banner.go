package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/betbot/feedlatency/internal/analysis"
)

var bannerBox = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("63")).
	Padding(0, 1)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	winnerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Banner 控制台摘要（带样式，不写入报告文件）
func Banner(in Input) string {
	lines := []string{titleStyle.Render(fmt.Sprintf("%s 延迟对比 · %s 秒", in.Symbol, seconds(in.Duration)))}

	for _, f := range in.Feeds {
		if f.Stats == nil {
			lines = append(lines, warnStyle.Render(fmt.Sprintf("%-9s 无数据", f.Name)))
			continue
		}
		lines = append(lines, fmt.Sprintf("%-9s n=%-5d 中位数 %sms  抖动 %sms",
			f.Name, f.Stats.Count, num(f.Stats.Median), num(f.Stats.JitterMean)))
	}

	c := in.Comparison
	switch {
	case c == nil || c.Outcome == analysis.OutcomeNoData:
		lines = append(lines, warnStyle.Render("无法对比"))
	case c.Outcome == analysis.OutcomeSingleValid:
		lines = append(lines, warnStyle.Render("仅 "+c.ValidFeed+" 有效"))
	case c.Score.IsTie():
		lines = append(lines, winnerStyle.Render("平局"))
	default:
		lines = append(lines, winnerStyle.Render(fmt.Sprintf("推荐 %s (%d/%d)",
			c.Score.Winner, c.Score.PerFeedScore[c.Score.Winner], analysis.TotalWeight)))
	}

	return bannerBox.Render(strings.Join(lines, "\n"))
}
