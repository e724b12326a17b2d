package domain

// 时间戳量级阈值（按量级判断单位）
const (
	microsecondThreshold = 1e15
	millisecondThreshold = 1e12
	secondThreshold      = 1e9
)

// NormalizeTimestampMs 将服务器时间戳统一为毫秒
// 单位仅由量级判断：>1e15 视为微秒，>1e12 视为毫秒，>1e9 视为秒，其余原样返回。
// ts == 0 返回 0，调用方应视为"无时间戳"并跳过采样。
// receiveMs 不参与计算。
func NormalizeTimestampMs(ts float64, receiveMs float64) float64 {
	switch {
	case ts == 0:
		return 0
	case ts > microsecondThreshold:
		return ts / 1000
	case ts > millisecondThreshold:
		return ts
	case ts > secondThreshold:
		return ts * 1000
	default:
		return ts
	}
}
