package websocket

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/feedlatency/internal/domain"
	"github.com/betbot/feedlatency/internal/recorder"
)

type memSink struct {
	mu      sync.Mutex
	samples []domain.Sample
}

func (m *memSink) Record(s domain.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, s)
	return nil
}

func (m *memSink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples)
}

// newFeedServer 启动一个测试 WebSocket 服务，handler 返回后关闭连接
func newFeedServer(t *testing.T, handler func(r *http.Request, conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(r, conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// drain 一直读到客户端断开
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func snapshotFeed(url string) domain.FeedConfig {
	return domain.FeedConfig{
		Name:           "feed-a",
		URLTemplate:    url + "/orderbooks/{symbol}-USD",
		TimestampTypes: []string{"SNAPSHOT"},
		TimestampField: "ts",
		PingType:       "PING",
		PongReply:      map[string]interface{}{"type": "PONG"},
	}
}

func testOptions() SamplerOptions {
	return SamplerOptions{ReceiveTimeout: 100 * time.Millisecond}
}

func TestSampler_KeepaliveAndSamples(t *testing.T) {
	paths := make(chan string, 1)
	pongs := make(chan map[string]interface{}, 1)

	url := newFeedServer(t, func(r *http.Request, conn *websocket.Conn) {
		paths <- r.URL.Path

		_ = conn.WriteJSON(map[string]interface{}{"type": "PING"})
		var reply map[string]interface{}
		if err := conn.ReadJSON(&reply); err == nil {
			pongs <- reply
		}

		now := time.Now().UnixMilli()
		_ = conn.WriteJSON(map[string]interface{}{"type": "SNAPSHOT", "ts": now})
		_ = conn.WriteJSON(map[string]interface{}{"type": "SNAPSHOT", "ts": 0})
		_ = conn.WriteJSON(map[string]interface{}{"type": "DELTA", "ts": now})
		_ = conn.WriteJSON(map[string]interface{}{"type": "SNAPSHOT", "ts": now + 1})
		drain(conn)
	})

	sink := &memSink{}
	s := NewSampler(snapshotFeed(url), sink, testOptions())
	res := s.Run(context.Background(), "BTC", 500*time.Millisecond)

	require.NoError(t, res.Err)
	assert.Equal(t, "/orderbooks/BTC-USD", <-paths)
	assert.Equal(t, map[string]interface{}{"type": "PONG"}, <-pongs)

	assert.Equal(t, 2, res.Series.Len())
	assert.ErrorIs(t, res.Series.Append(domain.NewSample(1, 0)), domain.ErrSeriesFrozen)
	assert.Equal(t, 1, res.Keepalives)
	assert.Equal(t, 1, res.ZeroTimestamps)
	assert.Equal(t, 5, res.Messages)
	assert.Equal(t, 2, sink.Len())
	assert.GreaterOrEqual(t, res.Elapsed(), 500*time.Millisecond)

	for _, sample := range res.Series.Samples() {
		assert.Equal(t, sample.ReceiveTimeMs-sample.ServerTimeMs, sample.LatencyMs)
	}
}

func TestSampler_SubscribeAndMicrosecondTimestamps(t *testing.T) {
	subs := make(chan map[string]interface{}, 1)
	const rawMicros = 1700000000123456.0

	url := newFeedServer(t, func(r *http.Request, conn *websocket.Conn) {
		var sub map[string]interface{}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subs <- sub
		_ = conn.WriteJSON(map[string]interface{}{"type": "subscribed/order_book", "timestamp": rawMicros})
		_ = conn.WriteJSON(map[string]interface{}{"type": "update/order_book", "timestamp": "1700000000200"})
		drain(conn)
	})

	feed := domain.FeedConfig{
		Name:           "feed-b",
		URLTemplate:    url + "/stream",
		TimestampTypes: []string{"subscribed/order_book", "update/order_book"},
		TimestampField: "timestamp",
		PingType:       "ping",
		PongReply:      map[string]interface{}{"type": "pong"},
	}.WithSubscribe(map[string]interface{}{"type": "subscribe", "channel": "order_book/1"})

	res := NewSampler(feed, nil, testOptions()).Run(context.Background(), "BTC", 300*time.Millisecond)
	require.NoError(t, res.Err)

	assert.Equal(t, map[string]interface{}{"type": "subscribe", "channel": "order_book/1"}, <-subs)
	samples := res.Series.Samples()
	require.Len(t, samples, 2)
	assert.Equal(t, rawMicros/1000, samples[0].ServerTimeMs)
	assert.Equal(t, 1700000000200.0, samples[1].ServerTimeMs)
}

func TestSampler_DecodeFailureKeepsSamples(t *testing.T) {
	url := newFeedServer(t, func(r *http.Request, conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]interface{}{"type": "SNAPSHOT", "ts": time.Now().UnixMilli()})
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		drain(conn)
	})

	res := NewSampler(snapshotFeed(url), nil, testOptions()).Run(context.Background(), "ETH", 5*time.Second)

	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ErrDecode)
	assert.Equal(t, 1, res.Series.Len())
	assert.ErrorIs(t, res.Series.Append(domain.NewSample(1, 0)), domain.ErrSeriesFrozen)
	assert.Less(t, res.Elapsed(), 5*time.Second)
}

func TestSampler_ConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	res := NewSampler(snapshotFeed(url), nil, testOptions()).Run(context.Background(), "BTC", time.Second)

	assert.ErrorIs(t, res.Err, ErrConnect)
	assert.Equal(t, 0, res.Series.Len())
	assert.ErrorIs(t, res.Series.Append(domain.NewSample(1, 0)), domain.ErrSeriesFrozen)
}

func TestSampler_PeerCloseIsReceiveFailure(t *testing.T) {
	url := newFeedServer(t, func(r *http.Request, conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]interface{}{"type": "SNAPSHOT", "ts": time.Now().UnixMilli()})
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	})

	res := NewSampler(snapshotFeed(url), nil, testOptions()).Run(context.Background(), "BTC", 5*time.Second)

	assert.ErrorIs(t, res.Err, ErrReceive)
	assert.Equal(t, 1, res.Series.Len())
}

func TestSampler_ZeroTimestampsOnlyLeavesEmptyLog(t *testing.T) {
	url := newFeedServer(t, func(r *http.Request, conn *websocket.Conn) {
		for i := 0; i < 3; i++ {
			_ = conn.WriteJSON(map[string]interface{}{"type": "SNAPSHOT", "ts": 0})
		}
		_ = conn.WriteJSON(map[string]interface{}{"type": "SNAPSHOT", "ts": -5})
		_ = conn.WriteJSON(map[string]interface{}{"type": "SNAPSHOT"})
		drain(conn)
	})

	path := filepath.Join(t.TempDir(), "feed-a_latency.log")
	rec, err := recorder.Open(path)
	require.NoError(t, err)

	res := NewSampler(snapshotFeed(url), rec, testOptions()).Run(context.Background(), "BTC", 300*time.Millisecond)
	require.NoError(t, rec.Close())

	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.Series.Len())
	assert.Equal(t, 5, res.ZeroTimestamps)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestSampler_TimeoutsAreNotFatal(t *testing.T) {
	url := newFeedServer(t, func(r *http.Request, conn *websocket.Conn) {
		drain(conn)
	})

	res := NewSampler(snapshotFeed(url), nil, SamplerOptions{ReceiveTimeout: 50 * time.Millisecond}).
		Run(context.Background(), "BTC", 300*time.Millisecond)

	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.Series.Len())
	assert.GreaterOrEqual(t, res.Timeouts, 2)
}

func TestSampler_NonFiniteTimestampsAreSkipped(t *testing.T) {
	url := newFeedServer(t, func(r *http.Request, conn *websocket.Conn) {
		for _, ts := range []string{"NaN", "Inf", "-Infinity", "abc", ""} {
			_ = conn.WriteJSON(map[string]interface{}{"type": "SNAPSHOT", "ts": ts})
		}
		_ = conn.WriteJSON(map[string]interface{}{"type": "SNAPSHOT", "ts": time.Now().UnixMilli()})
		drain(conn)
	})

	sink := &memSink{}
	res := NewSampler(snapshotFeed(url), sink, testOptions()).Run(context.Background(), "BTC", 300*time.Millisecond)

	require.NoError(t, res.Err)
	assert.Equal(t, 5, res.ZeroTimestamps)
	require.Equal(t, 1, res.Series.Len())
	assert.Equal(t, 1, sink.Len())
	for _, l := range res.Series.Latencies() {
		assert.False(t, math.IsNaN(l))
		assert.False(t, math.IsInf(l, 0))
	}
}

func TestSampler_WindowEndIsNotTimeout(t *testing.T) {
	url := newFeedServer(t, func(r *http.Request, conn *websocket.Conn) {
		drain(conn)
	})

	// 接收超时远大于窗口，等待只会被窗口截断
	res := NewSampler(snapshotFeed(url), nil, SamplerOptions{ReceiveTimeout: 5 * time.Second}).
		Run(context.Background(), "BTC", 200*time.Millisecond)

	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.Timeouts)
	assert.GreaterOrEqual(t, res.Elapsed(), 200*time.Millisecond)
	assert.Less(t, res.Elapsed(), 5*time.Second)
}

func TestSampler_ContextCancelEndsWindow(t *testing.T) {
	url := newFeedServer(t, func(r *http.Request, conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]interface{}{"type": "SNAPSHOT", "ts": time.Now().UnixMilli()})
		drain(conn)
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	res := NewSampler(snapshotFeed(url), nil, SamplerOptions{ReceiveTimeout: time.Second}).
		Run(ctx, "BTC", 10*time.Second)

	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Series.Len())
	assert.Less(t, res.Elapsed(), 5*time.Second)
}

func TestRecvKind_String(t *testing.T) {
	assert.Equal(t, "timeout", RecvTimeout.String())
	assert.Equal(t, "decode_failure", RecvDecodeFailure.String())
	assert.Equal(t, "window_end", RecvWindowEnd.String())
	assert.Equal(t, "unknown", RecvKind(99).String())
}

func TestNumberField(t *testing.T) {
	payload, err := decodePayload([]byte(`{"a":1766069395857,"b":"12.5","c":true}`))
	require.NoError(t, err)

	v, ok := numberField(payload, "a")
	assert.True(t, ok)
	assert.Equal(t, 1766069395857.0, v)

	v, ok = numberField(payload, "b")
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)

	_, ok = numberField(payload, "c")
	assert.False(t, ok)

	for _, raw := range []string{`"NaN"`, `"nan"`, `"Inf"`, `"+Inf"`, `"-Infinity"`, `"1e400"`, `"abc"`} {
		payload, err := decodePayload([]byte(`{"ts":` + raw + `}`))
		require.NoError(t, err)
		_, ok := numberField(payload, "ts")
		assert.False(t, ok, raw)
	}
	payload, err = decodePayload([]byte(`{"ts":1e400}`))
	require.NoError(t, err)
	_, ok = numberField(payload, "ts")
	assert.False(t, ok)
	_, ok = numberField(payload, "missing")
	assert.False(t, ok)

	_, err = decodePayload([]byte(`[1,2]`))
	assert.Error(t, err)
	_, err = decodePayload([]byte(`null`))
	assert.Error(t, err)
}
