package domain

import (
	"strings"
)

// SymbolPlaceholder URL 模板中的交易对占位符
const SymbolPlaceholder = "{symbol}"

// FeedConfig 单个数据源的消息结构描述
// 运行期间不可变，由对应的采样器独占。
type FeedConfig struct {
	Name        string // 数据源名称，例如 extended / lighter
	URLTemplate string // WebSocket 地址模板，{symbol} 会被替换

	// Subscribe 连接后发送的订阅消息（nil 表示无需握手）
	Subscribe map[string]interface{}

	TypeField      string   // 消息类型字段名，默认 "type"
	TimestampTypes []string // 携带时间戳的消息类型
	TimestampField string   // 服务器时间戳字段名

	PingType  string                 // 心跳请求的消息类型
	PongReply map[string]interface{} // 心跳回复
}

// URL 用交易对替换模板得到实际连接地址
func (f FeedConfig) URL(symbol string) string {
	return strings.ReplaceAll(f.URLTemplate, SymbolPlaceholder, symbol)
}

// TypeKey 返回消息类型字段名
func (f FeedConfig) TypeKey() string {
	if f.TypeField == "" {
		return "type"
	}
	return f.TypeField
}

// CarriesTimestamp 判断消息类型是否携带服务器时间戳
func (f FeedConfig) CarriesTimestamp(msgType string) bool {
	for _, t := range f.TimestampTypes {
		if t == msgType {
			return true
		}
	}
	return false
}

// IsKeepalive 判断是否为心跳请求
func (f FeedConfig) IsKeepalive(msgType string) bool {
	return f.PingType != "" && msgType == f.PingType
}

// WithSubscribe 返回带订阅消息的副本
func (f FeedConfig) WithSubscribe(msg map[string]interface{}) FeedConfig {
	f.Subscribe = msg
	return f
}

// WithURLTemplate 返回替换地址后的副本（空字符串保持不变）
func (f FeedConfig) WithURLTemplate(tpl string) FeedConfig {
	if tpl != "" {
		f.URLTemplate = tpl
	}
	return f
}
