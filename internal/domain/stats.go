package domain

// TieWinner 双方得分相同时的结论
const TieWinner = "tie"

// Stats 延迟序列的统计快照（毫秒）
type Stats struct {
	Count  int     `json:"count"`
	Rate   float64 `json:"rate"` // 条/秒，按名义时长计算
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"` // 样本标准差，Count < 2 时为 0
	P5     float64 `json:"p5"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`

	JitterMean float64 `json:"jitter_mean"`
	JitterP95  float64 `json:"jitter_p95"`
	JitterMax  float64 `json:"jitter_max"`

	Range float64 `json:"range"` // Max - Min

	ClockOffsetEstimate float64 `json:"clock_offset_estimate"`
	TrueLatencyEstimate float64 `json:"true_latency_estimate"`
}

// ScoreResult 两个数据源的加权得分
type ScoreResult struct {
	PerFeedScore map[string]int `json:"per_feed_score"`
	Winner       string         `json:"winner"` // 数据源名称或 "tie"
}

// IsTie 是否平局
func (r *ScoreResult) IsTie() bool {
	return r != nil && r.Winner == TieWinner
}
