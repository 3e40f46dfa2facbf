// Package messaging 实现 DHT 协议消息层
//
// 负责出站消息排队、失败重试（指数退避）、请求/响应关联、
// 入站消息分发和过期清理。线上格式为 CBOR 编码的 envelope。
package messaging

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-dhtstore/internal/dht/metrics"
	"github.com/dep2p/go-dhtstore/pkg/lib/log"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

var logger = log.Logger("dht/messaging")

// pendingResponse 等待中的响应
type pendingResponse struct {
	ch      chan Message
	created time.Time
	target  types.NodeID
}

// Service 消息层服务
//
// 队列和等待响应表只由 Service 的方法修改。
type Service struct {
	cfg       *Config
	self      types.NodeID
	transport Transport
	handler   RequestHandler
	clock     clock.Clock
	metrics   *metrics.Metrics
	limiter   *rate.Limiter
	seq       atomic.Uint64

	mu      sync.Mutex
	queue   messageQueue
	pending map[uuid.UUID]*pendingResponse
	replay  *expirable.LRU[uuid.UUID, struct{}]

	wake chan struct{}

	lifecycleMu sync.Mutex
	started     bool
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New 创建消息层服务，并注册为 transport 的入站接收方
func New(self types.NodeID, transport Transport, cfg *Config, opts ...Option) (*Service, error) {
	if transport == nil {
		return nil, ErrNoTransport
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:       cfg,
		self:      self,
		transport: transport,
		handler:   CannedHandler{},
		clock:     clock.New(),
		pending:   make(map[uuid.UUID]*pendingResponse),
		replay:    expirable.NewLRU[uuid.UUID, struct{}](cfg.ReplayCacheSize, nil, cfg.ReplayWindow),
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.SendRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), max(1, cfg.SendBurst))
	} else {
		s.limiter = rate.NewLimiter(rate.Inf, 0)
	}

	transport.SetReceiver(s)
	return s, nil
}

// Self 返回本地节点 ID
func (s *Service) Self() types.NodeID {
	return s.self
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动发送和清理后台循环
func (s *Service) Start(_ context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	// 不使用传入的 ctx：Fx OnStart 的 ctx 在返回后会被取消
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.started = true

	s.wg.Add(2)
	go s.sendLoop()
	go s.cleanupLoop()

	logger.Info("消息层已启动", "self", s.self.ShortString())
	return nil
}

// Stop 停止后台循环，所有等待方收到通道关闭
func (s *Service) Stop(_ context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.started {
		return ErrNotStarted
	}

	s.cancel()
	s.wg.Wait()
	s.started = false

	s.mu.Lock()
	for id, p := range s.pending {
		delete(s.pending, id)
		close(p.ch)
	}
	s.mu.Unlock()

	logger.Info("消息层已停止")
	return nil
}

func (s *Service) sendLoop() {
	defer s.wg.Done()

	ticker := s.clock.Ticker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.ProcessReady(s.ctx)
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		case <-ticker.C:
		}
	}
}

func (s *Service) cleanupLoop() {
	defer s.wg.Done()

	ticker := s.clock.Ticker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

// ============================================================================
//                              出站
// ============================================================================

// Enqueue 将消息加入发送队列，返回消息 ID
//
// 消息头中未设置的 ID、发送方和时间戳由本层填充。
func (s *Service) Enqueue(msg Message, target types.NodeID) (uuid.UUID, error) {
	if msg == nil {
		return uuid.Nil, ErrNilMessage
	}
	now := s.clock.Now()
	h := s.stamp(msg, now)

	s.mu.Lock()
	s.queue.push(&QueuedMessage{
		Message:   msg,
		Target:    target,
		NextRetry: now,
		Enqueued:  now,
		backoff:   newBackOff(s.cfg.BaseDelay, s.clock),
	})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return h.ID, nil
}

func (s *Service) stamp(msg Message, now time.Time) *Header {
	h := msg.header()
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.Sender.IsEmpty() {
		h.Sender = s.self
	}
	if h.Timestamp == 0 {
		h.Timestamp = now.UnixNano()
	}
	return h
}

// GetNextMessage 取出第一个到达重试时间的消息
func (s *Service) GetNextMessage() (*QueuedMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.popReady(s.clock.Now())
}

// QueueLen 返回排队消息数
func (s *Service) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

// PendingCount 返回等待响应数
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// ProcessReady 发送所有已就绪的消息，返回尝试发送的数量
func (s *Service) ProcessReady(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		qm, ok := s.GetNextMessage()
		if !ok {
			break
		}
		s.send(ctx, qm)
		n++
	}
	return n
}

func (s *Service) send(ctx context.Context, qm *QueuedMessage) {
	if err := s.limiter.Wait(ctx); err != nil {
		// 上下文取消，放回队列等待下次处理
		s.mu.Lock()
		s.queue.push(qm)
		s.mu.Unlock()
		return
	}

	payload, err := Encode(qm.Message)
	if err != nil {
		logger.Warn("消息编码失败，丢弃", "kind", qm.Message.Kind(), "error", err)
		s.drop(qm)
		return
	}

	if err := s.transport.Send(ctx, qm.Target, payload); err != nil {
		s.fail(qm, err)
		return
	}

	s.metrics.MessageSent(qm.Message.Kind().String(), len(payload))
	logger.Debug("消息已发送", "kind", qm.Message.Kind(), "target", qm.Target.ShortString(), "attempts", qm.Attempts)
}

// fail 记录一次发送失败：未达上限则按退避重新入队，否则丢弃
func (s *Service) fail(qm *QueuedMessage, err error) {
	qm.Attempts++
	if int(qm.Attempts) >= s.cfg.MaxRetries {
		logger.Warn("消息重试次数耗尽，丢弃",
			"kind", qm.Message.Kind(),
			"target", qm.Target.ShortString(),
			"attempts", qm.Attempts,
			"error", err)
		s.drop(qm)
		return
	}

	delay := qm.backoff.NextBackOff()
	qm.NextRetry = s.clock.Now().Add(delay)

	s.mu.Lock()
	s.queue.push(qm)
	s.mu.Unlock()

	s.metrics.MessageRetried()
	logger.Debug("消息发送失败，稍后重试",
		"kind", qm.Message.Kind(),
		"target", qm.Target.ShortString(),
		"attempts", qm.Attempts,
		"delay", delay,
		"error", err)
}

// drop 丢弃消息，并关闭其等待方的响应通道
func (s *Service) drop(qm *QueuedMessage) {
	s.metrics.MessageDropped()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closePendingLocked(MessageID(qm.Message))
}

func (s *Service) closePendingLocked(id uuid.UUID) bool {
	p, ok := s.pending[id]
	if !ok {
		return false
	}
	delete(s.pending, id)
	close(p.ch)
	return true
}

// ============================================================================
//                              请求/响应关联
// ============================================================================

// SendAndWait 发送消息并等待匹配的响应
//
// 结果只有三种：收到响应、响应通道被关闭（ErrChannelClosed）、超时（ErrTimeout）。
// 超时或 ctx 取消时等待项被移除。timeout ≤ 0 时使用默认超时。
func (s *Service) SendAndWait(ctx context.Context, msg Message, target types.NodeID, timeout time.Duration) (Message, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	if timeout <= 0 {
		timeout = s.cfg.RequestTimeout
	}

	now := s.clock.Now()
	id := s.stamp(msg, now).ID
	ch := make(chan Message, 1)

	s.mu.Lock()
	s.pending[id] = &pendingResponse{ch: ch, created: now, target: target}
	s.mu.Unlock()

	if _, err := s.Enqueue(msg, target); err != nil {
		s.removePending(id)
		return nil, err
	}

	timer := s.clock.Timer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, NewMessagingError("send_and_wait", ErrChannelClosed, msg.Kind().String())
		}
		return resp, nil
	case <-timer.C:
		s.removePending(id)
		return nil, NewMessagingError("send_and_wait", ErrTimeout, msg.Kind().String())
	case <-ctx.Done():
		s.removePending(id)
		return nil, ctx.Err()
	}
}

func (s *Service) removePending(id uuid.UUID) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// ============================================================================
//                              入站
// ============================================================================

// Receive 实现 Receiver 接口：解码并分发入站消息
func (s *Service) Receive(ctx context.Context, from types.NodeID, payload []byte) {
	msg, err := Decode(payload)
	if err != nil {
		logger.Debug("丢弃无法解码的消息", "from", from.ShortString(), "error", err)
		return
	}
	s.metrics.MessageReceived(msg.Kind().String(), len(payload))

	if err := s.HandleIncoming(ctx, from, msg); err != nil {
		logger.Debug("入站消息处理失败", "kind", msg.Kind(), "from", from.ShortString(), "error", err)
	}
}

// HandleIncoming 分发入站消息
//
// 响应只路由给对应的等待方，不会落到请求处理器；
// 请求由 RequestHandler 生成响应并入队回送。
func (s *Service) HandleIncoming(ctx context.Context, from types.NodeID, msg Message) error {
	if msg == nil {
		return ErrNilMessage
	}
	if from.IsEmpty() {
		from = SenderOf(msg)
	}

	switch m := msg.(type) {
	case *Pong:
		return s.deliverResponse(from, m)
	case *FindNodeResponse:
		return s.deliverResponse(from, m)
	case *FindValueResponse:
		return s.deliverResponse(from, m)
	case *StoreResponse:
		return s.deliverResponse(from, m)

	case *Ping:
		return s.respond(from, m.Header.ID, &Pong{})
	case *FindNode:
		nodes := s.handler.HandleFindNode(ctx, from, m.Target)
		return s.respond(from, m.Header.ID, &FindNodeResponse{Nodes: nodes})
	case *FindValue:
		value, found, closer := s.handler.HandleFindValue(ctx, from, m.Key)
		return s.respond(from, m.Header.ID, &FindValueResponse{
			Key:   m.Key,
			Found: found,
			Value: value,
			Nodes: closer,
		})
	case *Store:
		resp := &StoreResponse{Key: m.Key, Stored: true}
		if err := s.handler.HandleStore(ctx, from, m.Key, m.Value); err != nil {
			resp.Stored = false
			resp.Error = err.Error()
		}
		return s.respond(from, m.Header.ID, resp)

	default:
		return ErrUnknownKind
	}
}

// respond 填充关联与防重放字段后入队响应
func (s *Service) respond(to types.NodeID, requestID uuid.UUID, resp Response) error {
	r := resp.reply()
	r.RequestID = requestID
	r.Nonce = uuid.New()
	r.Seq = s.seq.Add(1)

	_, err := s.Enqueue(resp, to)
	return err
}

// deliverResponse 把响应交给等待方
//
// 响应必须带 nonce，且只接受来自请求目标节点的响应。
// 来源不符的响应不消耗等待项，真正的响应仍可送达。
func (s *Service) deliverResponse(from types.NodeID, resp Response) error {
	r := resp.reply()
	if r.Nonce == uuid.Nil {
		logger.Debug("丢弃缺少 nonce 的响应", "kind", resp.Kind(), "from", from.ShortString())
		return ErrMissingNonce
	}

	s.mu.Lock()
	if s.replay.Contains(r.Nonce) {
		s.mu.Unlock()
		s.metrics.ReplayRejected()
		return ErrReplay
	}

	p, ok := s.pending[r.RequestID]
	if ok && !p.target.IsEmpty() && p.target != from {
		s.mu.Unlock()
		logger.Debug("丢弃来源不符的响应",
			"kind", resp.Kind(),
			"from", from.ShortString(),
			"expected", p.target.ShortString())
		return ErrUnexpectedResponder
	}
	s.replay.Add(r.Nonce, struct{}{})
	if ok {
		delete(s.pending, r.RequestID)
		p.ch <- resp
	}
	s.mu.Unlock()

	s.metrics.ResponseMatched(ok)
	if !ok {
		logger.Debug("丢弃无等待方的响应", "kind", resp.Kind(), "request", r.RequestID)
		return ErrNoPendingRequest
	}
	return nil
}

// ============================================================================
//                              清理
// ============================================================================

// CleanupStats 清理结果
type CleanupStats struct {
	// ExpiredPending 超过保留窗口被移除的等待项
	ExpiredPending int

	// ExpiredQueued 超过保留窗口被移除的排队消息
	ExpiredQueued int

	// ClearedPending 因超过上限被整体清空的等待项
	ClearedPending int
}

// Cleanup 清理过期的等待项和排队消息
//
// 等待项超过 MaxPendingResponses 时整体清空。被移除的等待方收到通道关闭。
func (s *Service) Cleanup() CleanupStats {
	cutoff := s.clock.Now().Add(-s.cfg.RetentionWindow)
	var stats CleanupStats

	s.mu.Lock()
	for id, p := range s.pending {
		if p.created.Before(cutoff) {
			s.closePendingLocked(id)
			stats.ExpiredPending++
		}
	}

	for _, qm := range s.queue.removeEnqueuedBefore(cutoff) {
		s.closePendingLocked(MessageID(qm.Message))
		stats.ExpiredQueued++
	}

	if len(s.pending) > s.cfg.MaxPendingResponses {
		stats.ClearedPending = len(s.pending)
		for id := range s.pending {
			s.closePendingLocked(id)
		}
	}
	s.mu.Unlock()

	s.metrics.PendingCleared(stats.ExpiredPending + stats.ClearedPending)
	if stats.ClearedPending > 0 {
		logger.Warn("等待响应数超过上限，已全部清空", "count", stats.ClearedPending)
	}
	if stats.ExpiredPending+stats.ExpiredQueued > 0 {
		logger.Debug("清理过期消息", "pending", stats.ExpiredPending, "queued", stats.ExpiredQueued)
	}
	return stats
}
