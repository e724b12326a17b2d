package domain

import "fmt"

// Market 数据源上解析出的市场
type Market struct {
	Symbol   string // 交易对，例如 BTC
	MarketID int    // 数据源内部的市场编号
}

// IsValid 验证市场是否有效
func (m *Market) IsValid() bool {
	return m != nil && m.Symbol != "" && m.MarketID >= 0
}

// Channel 订单簿频道名，例如 order_book/1
func (m *Market) Channel() string {
	return fmt.Sprintf("order_book/%d", m.MarketID)
}
