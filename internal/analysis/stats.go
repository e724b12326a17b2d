// Package analysis 延迟序列的统计与双源对比评分
package analysis

import (
	"math"
	"sort"

	"github.com/betbot/feedlatency/internal/domain"
)

// AssumedMinPhysicalLatencyMs 假定的最小物理延迟（毫秒），用于估算时钟偏移
const AssumedMinPhysicalLatencyMs = 0.3

// ComputeStats 计算序列统计，空序列返回 nil（表示无数据，不是错误）
func ComputeStats(series *domain.LatencySeries, nominalDurationSeconds float64) *domain.Stats {
	return ComputeStatsFromLatencies(series.Latencies(), nominalDurationSeconds)
}

// ComputeStatsFromLatencies 按到达顺序的延迟值计算统计
func ComputeStatsFromLatencies(latencies []float64, nominalDurationSeconds float64) *domain.Stats {
	n := len(latencies)
	if n == 0 {
		return nil
	}

	sorted := make([]float64, n)
	copy(sorted, latencies)
	sort.Float64s(sorted)

	var sum float64
	for _, l := range latencies {
		sum += l
	}
	mean := sum / float64(n)
	median := medianOfSorted(sorted)

	stats := &domain.Stats{
		Count:  n,
		Mean:   mean,
		Median: median,
		Min:    sorted[0],
		Max:    sorted[n-1],
		StdDev: sampleStdDev(latencies, mean),
		P5:     percentile(sorted, 0.05),
		P95:    percentile(sorted, 0.95),
		P99:    percentile(sorted, 0.99),
	}
	if nominalDurationSeconds > 0 {
		stats.Rate = float64(n) / nominalDurationSeconds
	}
	stats.Range = stats.Max - stats.Min

	jitter := Jitter(latencies)
	if len(jitter) > 0 {
		var jsum, jmax float64
		for _, j := range jitter {
			jsum += j
			if j > jmax {
				jmax = j
			}
		}
		stats.JitterMean = jsum / float64(len(jitter))
		stats.JitterMax = jmax

		sortedJitter := make([]float64, len(jitter))
		copy(sortedJitter, jitter)
		sort.Float64s(sortedJitter)
		stats.JitterP95 = sortedJitter[int(float64(len(sortedJitter)-1)*0.95)]
	}

	// 注意：TrueLatencyEstimate 代数上恒等于 AssumedMinPhysicalLatencyMs，保留原公式
	stats.ClockOffsetEstimate = median - AssumedMinPhysicalLatencyMs
	stats.TrueLatencyEstimate = median - stats.ClockOffsetEstimate

	return stats
}

// Jitter 相邻采样延迟差的绝对值（按到达顺序），长度为 n-1
func Jitter(latencies []float64) []float64 {
	if len(latencies) < 2 {
		return nil
	}
	out := make([]float64, 0, len(latencies)-1)
	for i := 1; i < len(latencies); i++ {
		out = append(out, math.Abs(latencies[i]-latencies[i-1]))
	}
	return out
}

// percentile 升序序列上取 floor(n*p) 位置的值
func percentile(sorted []float64, p float64) float64 {
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// medianOfSorted 偶数个时取中间两个的平均值
func medianOfSorted(sorted []float64) float64 {
	n := len(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// sampleStdDev 样本标准差（n-1），少于 2 个样本返回 0
func sampleStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)-1))
}
