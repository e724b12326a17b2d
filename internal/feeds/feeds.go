// Package feeds 两个被对比的行情数据源：Extended 与 Lighter
package feeds

import (
	"strings"

	"github.com/betbot/feedlatency/internal/domain"
)

const (
	ExtendedName = "extended"
	LighterName  = "lighter"
)

const (
	DefaultExtendedURL    = "wss://api.starknet.extended.exchange/stream.extended.exchange/v1/orderbooks/{symbol}-USD?depth=1"
	DefaultLighterURL     = "wss://mainnet.zklighter.elliot.ai/stream"
	DefaultLighterRESTURL = "https://mainnet.zklighter.elliot.ai"
)

// Extended 订单簿快照流：无需订阅，SNAPSHOT 携带 ts，PING → PONG
func Extended(urlTemplate string) domain.FeedConfig {
	return domain.FeedConfig{
		Name:           ExtendedName,
		URLTemplate:    DefaultExtendedURL,
		TimestampTypes: []string{"SNAPSHOT"},
		TimestampField: "ts",
		PingType:       "PING",
		PongReply:      map[string]interface{}{"type": "PONG"},
	}.WithURLTemplate(urlTemplate)
}

// Lighter 订单簿流：连接后订阅 order_book/{market_id}，ping → pong
// 订阅消息需要先解析 market_id，见 LighterFor。
func Lighter(urlTemplate string) domain.FeedConfig {
	return domain.FeedConfig{
		Name:           LighterName,
		URLTemplate:    DefaultLighterURL,
		TimestampTypes: []string{"subscribed/order_book", "update/order_book"},
		TimestampField: "timestamp",
		PingType:       "ping",
		PongReply:      map[string]interface{}{"type": "pong"},
	}.WithURLTemplate(urlTemplate)
}

// LighterFor 绑定市场后的 Lighter 配置
func LighterFor(urlTemplate string, market *domain.Market) domain.FeedConfig {
	return Lighter(urlTemplate).WithSubscribe(map[string]interface{}{
		"type":    "subscribe",
		"channel": market.Channel(),
	})
}

// NormalizeSymbol 统一交易对格式（大写、去空格）
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
