package messaging

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dep2p/go-dhtstore/pkg/types"
)

// QueuedMessage 待发送消息
type QueuedMessage struct {
	// Message 消息
	Message Message

	// Target 目标节点
	Target types.NodeID

	// Attempts 已失败的发送次数
	Attempts uint32

	// NextRetry 最早可发送时间
	NextRetry time.Time

	// Enqueued 入队时间
	Enqueued time.Time

	backoff *backoff.ExponentialBackOff
}

// newBackOff 创建无抖动的指数退避：第 n 次调用 NextBackOff 返回 base×2^(n-1)
func newBackOff(base time.Duration, clk backoff.Clock) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Duration(math.MaxInt64),
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               clk,
	}
	b.Reset()
	return b
}

// messageQueue FIFO 入队、就绪优先出队的消息队列
//
// 失败消息以未来的 NextRetry 重新追加到队尾，
// 因此出队时选择第一个 NextRetry ≤ now 的消息，而不一定是队首。
// 非并发安全，由 Service 加锁保护。
type messageQueue struct {
	items []*QueuedMessage
}

func (q *messageQueue) push(m *QueuedMessage) {
	q.items = append(q.items, m)
}

// popReady 取出第一个就绪的消息
func (q *messageQueue) popReady(now time.Time) (*QueuedMessage, bool) {
	for i, m := range q.items {
		if !m.NextRetry.After(now) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return m, true
		}
	}
	return nil, false
}

// removeEnqueuedBefore 移除入队时间早于 cutoff 的消息
func (q *messageQueue) removeEnqueuedBefore(cutoff time.Time) []*QueuedMessage {
	var removed []*QueuedMessage
	kept := q.items[:0]
	for _, m := range q.items {
		if m.Enqueued.Before(cutoff) {
			removed = append(removed, m)
		} else {
			kept = append(kept, m)
		}
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	return removed
}

func (q *messageQueue) len() int {
	return len(q.items)
}
