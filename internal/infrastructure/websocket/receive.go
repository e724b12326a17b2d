package websocket

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// RecvKind 单次接收的结果分类
type RecvKind int

const (
	RecvMessage       RecvKind = iota // 收到并解析成功的消息
	RecvTimeout                       // 等待超时，继续下一轮
	RecvCancelled                     // ctx 取消，视为窗口结束
	RecvDecodeFailure                 // 负载不是 JSON 对象
	RecvClosed                        // 对端正常关闭
	RecvFatal                         // 其他接收错误
	RecvWindowEnd                     // 采样窗口已到期，不计为超时
)

func (k RecvKind) String() string {
	switch k {
	case RecvMessage:
		return "message"
	case RecvTimeout:
		return "timeout"
	case RecvCancelled:
		return "cancelled"
	case RecvDecodeFailure:
		return "decode_failure"
	case RecvClosed:
		return "closed"
	case RecvFatal:
		return "fatal"
	case RecvWindowEnd:
		return "window_end"
	default:
		return "unknown"
	}
}

// inboundMessage 读协程投递的原始帧（收到时刻在读返回后立即记录）
type inboundMessage struct {
	data       []byte
	receivedAt time.Time
	err        error
}

type received struct {
	kind       RecvKind
	payload    map[string]interface{}
	receivedAt time.Time
	err        error
}

// readLoop 独立读协程。
// gorilla 连接的读错误（包括读超时）不可恢复，因此单条消息的等待超时
// 由 receive 的计时器实现，读协程只管阻塞读取，直到连接关闭。
func (s *Sampler) readLoop(conn *websocket.Conn, out chan<- inboundMessage, done <-chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		msg := inboundMessage{data: data, receivedAt: s.opts.Now(), err: err}
		select {
		case out <- msg:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

// receive 等待下一条消息，最多等待 min(接收超时, 窗口剩余时间)
// 等待被窗口剩余时间截断时，到期返回 RecvWindowEnd 而不是 RecvTimeout。
func (s *Sampler) receive(ctx context.Context, in <-chan inboundMessage, deadline time.Time) received {
	wait := s.opts.ReceiveTimeout
	windowBound := false
	if remaining := deadline.Sub(s.opts.Now()); remaining < wait {
		wait = remaining
		windowBound = true
	}
	if wait <= 0 {
		return received{kind: RecvWindowEnd}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return received{kind: RecvCancelled, err: ctx.Err()}
	case <-timer.C:
		if windowBound {
			return received{kind: RecvWindowEnd}
		}
		return received{kind: RecvTimeout}
	case msg := <-in:
		return classify(msg)
	}
}

func classify(msg inboundMessage) received {
	if msg.err != nil {
		if websocket.IsCloseError(msg.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return received{kind: RecvClosed, err: msg.err}
		}
		return received{kind: RecvFatal, err: msg.err}
	}
	payload, err := decodePayload(msg.data)
	if err != nil {
		return received{kind: RecvDecodeFailure, err: err}
	}
	return received{kind: RecvMessage, payload: payload, receivedAt: msg.receivedAt}
}
