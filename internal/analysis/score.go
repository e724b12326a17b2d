package analysis

import (
	"github.com/betbot/feedlatency/internal/domain"
)

// 评分项权重
const (
	WeightStdDev     = 2
	WeightJitterMean = 2
	WeightRange      = 1
	WeightRate       = 1

	TotalWeight = WeightStdDev + WeightJitterMean + WeightRange + WeightRate
)

// Outcome 对比结论类型
type Outcome string

const (
	OutcomeScored      Outcome = "scored"       // 双方都有数据，已评分
	OutcomeSingleValid Outcome = "single_valid" // 仅一方有数据
	OutcomeNoData      Outcome = "no_data"      // 双方都没有数据
)

// FeedStats 参与对比的一方
type FeedStats struct {
	Name  string
	Stats *domain.Stats // nil 表示无数据

	// WindowSeconds 实际采样窗口（秒），0 表示未知
	WindowSeconds float64
}

// HasData 是否有至少一个采样
func (f FeedStats) HasData() bool {
	return f.Stats != nil && f.Stats.Count > 0
}

// WindowRate 评分用速率：样本数 / 实际窗口，窗口未知时使用 Stats.Rate（名义时长）
func (f FeedStats) WindowRate() float64 {
	if f.Stats == nil {
		return 0
	}
	if f.WindowSeconds > 0 {
		return float64(f.Stats.Count) / f.WindowSeconds
	}
	return f.Stats.Rate
}

// Criterion 单项评分结果
type Criterion struct {
	Name           string  `json:"name"`
	Weight         int     `json:"weight"`
	HigherIsBetter bool    `json:"higher_is_better"`
	First          float64 `json:"first"`
	Second         float64 `json:"second"`
	Winner         string  `json:"winner"`
}

// Comparison 对比结果
type Comparison struct {
	Outcome   Outcome             `json:"outcome"`
	First     string              `json:"first"`
	Second    string              `json:"second"`
	ValidFeed string              `json:"valid_feed,omitempty"` // OutcomeSingleValid 时有数据的一方
	Criteria  []Criterion         `json:"criteria,omitempty"`
	Score     *domain.ScoreResult `json:"score,omitempty"`
}

// Compare 对两个数据源加权评分
// 每项严格小于（或速率严格大于）时第一方得分，否则（含相等）第二方得分。
// 速率按各自的实际采样窗口计算（见 WindowRate）。
// 两方同名时第二方改名为 "<name>#2"，保证两方得分之和为 TotalWeight。
func Compare(first, second FeedStats) *Comparison {
	if second.Name == first.Name {
		second.Name += "#2"
	}
	c := &Comparison{First: first.Name, Second: second.Name}

	switch {
	case first.HasData() && second.HasData():
		c.Outcome = OutcomeScored
	case first.HasData():
		c.Outcome = OutcomeSingleValid
		c.ValidFeed = first.Name
		return c
	case second.HasData():
		c.Outcome = OutcomeSingleValid
		c.ValidFeed = second.Name
		return c
	default:
		c.Outcome = OutcomeNoData
		return c
	}

	a, b := first.Stats, second.Stats
	c.Criteria = []Criterion{
		lowerWins("std_dev", WeightStdDev, a.StdDev, b.StdDev, first.Name, second.Name),
		lowerWins("jitter_mean", WeightJitterMean, a.JitterMean, b.JitterMean, first.Name, second.Name),
		lowerWins("range", WeightRange, a.Range, b.Range, first.Name, second.Name),
		higherWins("rate", WeightRate, first.WindowRate(), second.WindowRate(), first.Name, second.Name),
	}

	scores := map[string]int{first.Name: 0, second.Name: 0}
	for _, cr := range c.Criteria {
		scores[cr.Winner] += cr.Weight
	}

	winner := domain.TieWinner
	switch {
	case scores[first.Name] > scores[second.Name]:
		winner = first.Name
	case scores[second.Name] > scores[first.Name]:
		winner = second.Name
	}

	c.Score = &domain.ScoreResult{PerFeedScore: scores, Winner: winner}
	return c
}

// CriterionWinner 按名称查询单项胜者
func (c *Comparison) CriterionWinner(name string) string {
	if c == nil {
		return ""
	}
	for _, cr := range c.Criteria {
		if cr.Name == name {
			return cr.Winner
		}
	}
	return ""
}

func lowerWins(name string, weight int, a, b float64, first, second string) Criterion {
	cr := Criterion{Name: name, Weight: weight, First: a, Second: b, Winner: second}
	if a < b {
		cr.Winner = first
	}
	return cr
}

func higherWins(name string, weight int, a, b float64, first, second string) Criterion {
	cr := Criterion{Name: name, Weight: weight, HigherIsBetter: true, First: a, Second: b, Winner: second}
	if b < a {
		cr.Winner = first
	}
	return cr
}
