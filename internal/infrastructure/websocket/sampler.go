package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/betbot/feedlatency/internal/domain"
	"github.com/betbot/feedlatency/internal/metrics"
	"github.com/betbot/feedlatency/pkg/logger"
)

const (
	defaultReceiveTimeout   = 5 * time.Second
	defaultHandshakeTimeout = 15 * time.Second
	defaultProgressEvery    = 50
	writeTimeout            = 10 * time.Second
	inboundBufferSize       = 256
)

// 致命错误类型（只影响当前数据源）
var (
	ErrConnect   = errors.New("connect failure")
	ErrHandshake = errors.New("handshake failure")
	ErrDecode    = errors.New("message decode failure")
	ErrReceive   = errors.New("receive failure")
)

// SampleSink 采样持久化（每条采样产生时调用）
type SampleSink interface {
	Record(sample domain.Sample) error
}

// SamplerOptions 采样器参数
type SamplerOptions struct {
	ReceiveTimeout   time.Duration // 单条消息等待超时，默认 5s
	HandshakeTimeout time.Duration // WebSocket 握手超时
	ProgressEvery    int           // 每 N 个样本打印一次进度，默认 50
	ProxyURL         string        // 代理（可选，为空时读取环境变量）
	Now              func() time.Time
}

func (o SamplerOptions) withDefaults() SamplerOptions {
	if o.ReceiveTimeout <= 0 {
		o.ReceiveTimeout = defaultReceiveTimeout
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = defaultProgressEvery
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Result 单个数据源的采样结果
type Result struct {
	Series   *domain.LatencySeries // 已冻结
	Started  time.Time
	Finished time.Time

	Messages       int // 收到的消息数
	Keepalives     int // 已回复的心跳
	Timeouts       int // 单条消息等待超时次数
	ZeroTimestamps int // 时间戳缺失或 <= 0 被跳过

	Err error // 提前结束的原因；窗口正常结束时为 nil
}

// Elapsed 实际采样时长
func (r *Result) Elapsed() time.Duration {
	if r == nil || r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Sampler 单个数据源的连接采样器
// 连接 → 订阅 → 循环接收，直到时长耗尽或发生致命错误。
type Sampler struct {
	feed domain.FeedConfig
	sink SampleSink
	opts SamplerOptions
	log  *logrus.Entry
}

// NewSampler 创建采样器，sink 可为 nil
func NewSampler(feed domain.FeedConfig, sink SampleSink, opts SamplerOptions) *Sampler {
	return &Sampler{
		feed: feed,
		sink: sink,
		opts: opts.withDefaults(),
		log: logger.WithFields(logrus.Fields{
			"component": "sampler",
			"feed":      feed.Name,
		}),
	}
}

// Run 在 duration 内采样，总是返回结果（包括提前失败时已收集的样本）
func (s *Sampler) Run(ctx context.Context, symbol string, duration time.Duration) *Result {
	res := &Result{
		Series:  domain.NewLatencySeries(s.feed.Name),
		Started: s.opts.Now(),
	}
	defer func() {
		res.Series.Freeze()
		res.Finished = s.opts.Now()
		s.logSummary(res)
	}()

	conn, err := s.dial(ctx, s.feed.URL(symbol))
	if err != nil {
		metrics.IncConnectFailure(s.feed.Name)
		res.Err = fmt.Errorf("%w: %v", ErrConnect, err)
		return res
	}
	defer conn.Close()

	if err := s.subscribe(conn); err != nil {
		metrics.IncConnectFailure(s.feed.Name)
		res.Err = fmt.Errorf("%w: %v", ErrHandshake, err)
		return res
	}

	done := make(chan struct{})
	defer close(done)
	inbound := make(chan inboundMessage, inboundBufferSize)
	go s.readLoop(conn, inbound, done)

	deadline := res.Started.Add(duration)
	s.log.Infof("✅ 已连接，开始采样（%s）", duration)

	for {
		if !s.opts.Now().Before(deadline) {
			return res
		}

		recv := s.receive(ctx, inbound, deadline)
		switch recv.kind {
		case RecvMessage:
			res.Messages++
			if err := s.handle(conn, recv, res); err != nil {
				res.Err = err
				return res
			}
		case RecvTimeout:
			res.Timeouts++
			metrics.IncReceiveTimeout(s.feed.Name)
		case RecvWindowEnd:
			return res
		case RecvCancelled:
			s.log.Warnf("采样被中断")
			return res
		case RecvDecodeFailure:
			metrics.IncDecodeError(s.feed.Name)
			res.Err = fmt.Errorf("%w: %v", ErrDecode, recv.err)
			return res
		case RecvClosed, RecvFatal:
			res.Err = fmt.Errorf("%w: %v", ErrReceive, recv.err)
			return res
		}
	}
}

// dial 拨号 WebSocket 连接
func (s *Sampler) dial(ctx context.Context, wsURL string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.opts.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	proxy := s.opts.ProxyURL
	if proxy == "" {
		proxy = getProxyFromEnv()
	}
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("无效的代理 URL: %w", err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
		s.log.Infof("使用代理连接 WebSocket: %s", proxy)
	}

	s.log.Infof("🔌 连接 %s", wsURL)
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// subscribe 发送订阅消息（无需握手的数据源直接返回）
func (s *Sampler) subscribe(conn *websocket.Conn) error {
	if s.feed.Subscribe == nil {
		return nil
	}
	if err := s.writeJSON(conn, s.feed.Subscribe); err != nil {
		return err
	}
	s.log.Infof("📡 已订阅: %v", s.feed.Subscribe)
	return nil
}

func (s *Sampler) writeJSON(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(s.opts.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// handle 处理一条已解析的消息：心跳回复或采样
func (s *Sampler) handle(conn *websocket.Conn, recv received, res *Result) error {
	msgType := stringField(recv.payload, s.feed.TypeKey())

	if s.feed.IsKeepalive(msgType) {
		if err := s.writeJSON(conn, s.feed.PongReply); err != nil {
			return fmt.Errorf("%w: 回复心跳失败: %v", ErrReceive, err)
		}
		res.Keepalives++
		metrics.IncKeepalive(s.feed.Name)
		return nil
	}

	if !s.feed.CarriesTimestamp(msgType) {
		return nil
	}

	raw, ok := numberField(recv.payload, s.feed.TimestampField)
	if !ok || raw <= 0 {
		res.ZeroTimestamps++
		metrics.IncZeroTimestamp(s.feed.Name)
		return nil
	}

	receiveMs := toMillis(recv.receivedAt)
	serverMs := domain.NormalizeTimestampMs(raw, receiveMs)
	sample := domain.NewSample(receiveMs, serverMs)
	if err := res.Series.Append(sample); err != nil {
		return err
	}
	metrics.ObserveSample(s.feed.Name, sample.LatencyMs)

	if s.sink != nil {
		if err := s.sink.Record(sample); err != nil {
			s.log.Warnf("写入采样日志失败: %v", err)
		}
	}

	count := res.Series.Len()
	if count == 1 {
		s.log.Infof("📊 首个样本: type=%s %s=%v latency=%.2fms", msgType, s.feed.TimestampField, raw, sample.LatencyMs)
	}
	if count%s.opts.ProgressEvery == 0 {
		s.log.Infof("⏱️ 已采集 %d 个样本，最新延迟 %.2fms", count, sample.LatencyMs)
	}
	return nil
}

func (s *Sampler) logSummary(res *Result) {
	entry := s.log.WithFields(logrus.Fields{
		"samples":    res.Series.Len(),
		"messages":   res.Messages,
		"keepalives": res.Keepalives,
		"timeouts":   res.Timeouts,
		"elapsed":    res.Elapsed().Round(time.Millisecond),
	})
	if res.Err != nil {
		entry.Warnf("采样提前结束: %d 个样本 (%v)", res.Series.Len(), res.Err)
		return
	}
	entry.Infof("采样结束: %d 个样本", res.Series.Len())
}

// toMillis 本地墙钟时间（毫秒，带小数）
func toMillis(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e6
}

func stringField(payload map[string]interface{}, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// numberField 读取数值字段（兼容数字和数字字符串），NaN/Inf 视为缺失
func numberField(payload map[string]interface{}, key string) (float64, bool) {
	v, ok := payload[key]
	if !ok || v == nil {
		return 0, false
	}

	var (
		f   float64
		err error
	)
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case float64:
		f = t
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func decodePayload(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errors.New("empty payload")
	}
	return payload, nil
}
