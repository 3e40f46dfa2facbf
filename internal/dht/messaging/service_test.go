package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dhtstore/pkg/types"
)

// ============================================================================
// 测试辅助
// ============================================================================

var errLinkDown = errors.New("link down")

type sent struct {
	target types.NodeID
	msg    Message
}

// fakeTransport 记录发送的消息，可按次数注入失败
type fakeTransport struct {
	mu       sync.Mutex
	sent     []sent
	calls    int
	failing  bool
	onSend   func(target types.NodeID, msg Message)
	receiver Receiver
}

func (f *fakeTransport) Send(_ context.Context, target types.NodeID, payload []byte) error {
	f.mu.Lock()
	f.calls++
	failing := f.failing
	onSend := f.onSend
	f.mu.Unlock()

	if failing {
		return errLinkDown
	}
	msg, err := Decode(payload)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.sent = append(f.sent, sent{target: target, msg: msg})
	f.mu.Unlock()

	if onSend != nil {
		onSend(target, msg)
	}
	return nil
}

func (f *fakeTransport) SetReceiver(r Receiver) {
	f.receiver = r
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTransport) Sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func peer(b byte) types.NodeID {
	var id types.NodeID
	id[0] = b
	return id
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.SendRate = 0
	return cfg
}

func newTestService(t *testing.T, clk clock.Clock, cfg *Config) (*Service, *fakeTransport) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	tr := &fakeTransport{}
	s, err := New(peer(0xAA), tr, cfg, WithClock(clk))
	require.NoError(t, err)
	return s, tr
}

// ============================================================================
// 构造
// ============================================================================

func TestNew_RegistersReceiver(t *testing.T) {
	s, tr := newTestService(t, clock.NewMock(), nil)
	assert.Same(t, s, tr.receiver)

	_, err := New(peer(1), nil, nil)
	assert.ErrorIs(t, err, ErrNoTransport)

	bad := testConfig()
	bad.MaxRetries = 0
	_, err = New(peer(1), &fakeTransport{}, bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// ============================================================================
// 队列与重试
// ============================================================================

// TestGetNextMessage_ReadyFirst 测试出队选择第一个就绪消息而不是队首
func TestGetNextMessage_ReadyFirst(t *testing.T) {
	clk := clock.NewMock()
	s, _ := newTestService(t, clk, nil)

	first, err := s.Enqueue(&Ping{}, peer(1))
	require.NoError(t, err)
	second, err := s.Enqueue(&Ping{}, peer(2))
	require.NoError(t, err)

	// 队首消息推迟
	s.mu.Lock()
	s.queue.items[0].NextRetry = clk.Now().Add(time.Minute)
	s.mu.Unlock()

	qm, ok := s.GetNextMessage()
	require.True(t, ok)
	assert.Equal(t, second, MessageID(qm.Message))

	_, ok = s.GetNextMessage()
	assert.False(t, ok, "剩余消息尚未到重试时间")

	clk.Add(time.Minute)
	qm, ok = s.GetNextMessage()
	require.True(t, ok)
	assert.Equal(t, first, MessageID(qm.Message))
}

// TestEnqueue_StampsHeader 测试入队填充消息头
func TestEnqueue_StampsHeader(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1700000000, 0))
	s, _ := newTestService(t, clk, nil)

	msg := &Store{Key: "k", Value: []byte("v")}
	id, err := s.Enqueue(msg, peer(1))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, id, msg.Header.ID)
	assert.Equal(t, peer(0xAA), msg.Header.Sender)
	assert.True(t, SentAt(msg).Equal(clk.Now()))

	_, err = s.Enqueue(nil, peer(1))
	assert.ErrorIs(t, err, ErrNilMessage)
}

// TestRetry_ExponentialBackoffAndDrop 测试退避 base×2^(n-1) 与达到上限后丢弃
func TestRetry_ExponentialBackoffAndDrop(t *testing.T) {
	clk := clock.NewMock()
	s, tr := newTestService(t, clk, nil)
	tr.failing = true
	ctx := context.Background()

	_, err := s.Enqueue(&Ping{}, peer(1))
	require.NoError(t, err)

	// 第 1 次失败：延迟 1s
	assert.Equal(t, 1, s.ProcessReady(ctx))
	qm := s.queue.items[0]
	assert.Equal(t, uint32(1), qm.Attempts)
	assert.Equal(t, clk.Now().Add(time.Second), qm.NextRetry)

	clk.Add(time.Second)
	// 第 2 次失败：延迟 2s
	assert.Equal(t, 1, s.ProcessReady(ctx))
	assert.Equal(t, uint32(2), qm.Attempts)
	assert.Equal(t, clk.Now().Add(2*time.Second), qm.NextRetry)

	clk.Add(time.Second)
	assert.Zero(t, s.ProcessReady(ctx), "尚未到重试时间")

	clk.Add(time.Second)
	// 第 3 次失败：达到 MaxRetries，丢弃
	assert.Equal(t, 1, s.ProcessReady(ctx))
	assert.Zero(t, s.QueueLen())
	assert.Equal(t, 3, tr.Calls())
}

// TestRetry_RecoversAfterFailure 测试失败后恢复发送
func TestRetry_RecoversAfterFailure(t *testing.T) {
	clk := clock.NewMock()
	s, tr := newTestService(t, clk, nil)
	tr.failing = true

	_, err := s.Enqueue(&Ping{}, peer(1))
	require.NoError(t, err)
	s.ProcessReady(context.Background())

	tr.mu.Lock()
	tr.failing = false
	tr.mu.Unlock()

	clk.Add(time.Second)
	s.ProcessReady(context.Background())

	assert.Zero(t, s.QueueLen())
	require.Len(t, tr.Sent(), 1)
	assert.Equal(t, peer(1), tr.Sent()[0].target)
}

// ============================================================================
// SendAndWait
// ============================================================================

// TestSendAndWait_MatchedResponse 测试响应按请求 ID 送达等待方
func TestSendAndWait_MatchedResponse(t *testing.T) {
	s, tr := newTestService(t, clock.New(), nil)
	tr.onSend = func(_ types.NodeID, msg Message) {
		if msg.Kind() != KindStore {
			return
		}
		resp := &StoreResponse{Key: "k", Stored: true}
		resp.Reply = Reply{RequestID: MessageID(msg), Nonce: uuid.New(), Seq: 1}
		go func() { _ = s.HandleIncoming(context.Background(), peer(1), resp) }()
	}
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	err := s.StoreValue(context.Background(), peer(1), "k", []byte("v"), time.Second)
	require.NoError(t, err)
	assert.Zero(t, s.PendingCount())
}

// TestSendAndWait_Timeout 测试超时后移除等待项
func TestSendAndWait_Timeout(t *testing.T) {
	s, _ := newTestService(t, clock.New(), nil)

	_, err := s.SendAndWait(context.Background(), &Ping{}, peer(1), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Zero(t, s.PendingCount(), "超时后等待项被移除")
}

// TestSendAndWait_ContextCanceled 测试 ctx 取消
func TestSendAndWait_ContextCanceled(t *testing.T) {
	s, _ := newTestService(t, clock.New(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SendAndWait(ctx, &Ping{}, peer(1), time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.PendingCount())
}

// TestSendAndWait_ChannelClosedOnDrop 测试消息被丢弃时等待方收到通道关闭
func TestSendAndWait_ChannelClosedOnDrop(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 1
	s, tr := newTestService(t, clock.New(), cfg)
	tr.failing = true

	errCh := make(chan error, 1)
	go func() {
		_, err := s.SendAndWait(context.Background(), &Ping{}, peer(1), time.Minute)
		errCh <- err
	}()

	require.Eventually(t, func() bool { return s.QueueLen() == 1 }, time.Second, time.Millisecond)
	s.ProcessReady(context.Background())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrChannelClosed)
	case <-time.After(time.Second):
		t.Fatal("等待方未返回")
	}
}

// ============================================================================
// 入站分发
// ============================================================================

// TestHandleIncoming_CannedResponses 测试请求生成带 nonce 和序号的固定响应
func TestHandleIncoming_CannedResponses(t *testing.T) {
	s, tr := newTestService(t, clock.NewMock(), nil)
	ctx := context.Background()

	ping := &Ping{Header: Header{ID: uuid.New()}}
	find := &FindValue{Header: Header{ID: uuid.New()}, Key: "missing"}
	store := &Store{Header: Header{ID: uuid.New()}, Key: "k", Value: []byte("v")}
	fn := &FindNode{Header: Header{ID: uuid.New()}, Target: peer(9)}

	require.NoError(t, s.HandleIncoming(ctx, peer(1), ping))
	require.NoError(t, s.HandleIncoming(ctx, peer(1), find))
	require.NoError(t, s.HandleIncoming(ctx, peer(2), store))
	require.NoError(t, s.HandleIncoming(ctx, peer(3), fn))
	s.ProcessReady(ctx)

	out := tr.Sent()
	require.Len(t, out, 4)

	pong, ok := out[0].msg.(*Pong)
	require.True(t, ok)
	assert.Equal(t, peer(1), out[0].target)
	assert.Equal(t, ping.Header.ID, pong.Reply.RequestID)
	assert.NotEqual(t, uuid.Nil, pong.Reply.Nonce)
	assert.Equal(t, uint64(1), pong.Reply.Seq)

	fv, ok := out[1].msg.(*FindValueResponse)
	require.True(t, ok)
	assert.False(t, fv.Found)
	assert.Equal(t, "missing", fv.Key)
	assert.Equal(t, uint64(2), fv.Reply.Seq)

	sr, ok := out[2].msg.(*StoreResponse)
	require.True(t, ok)
	assert.True(t, sr.Stored)
	assert.Equal(t, peer(2), out[2].target)

	fr, ok := out[3].msg.(*FindNodeResponse)
	require.True(t, ok)
	assert.Empty(t, fr.Nodes)
	assert.NotEqual(t, pong.Reply.Nonce, fr.Reply.Nonce)
}

type rejectingHandler struct{ CannedHandler }

func (rejectingHandler) HandleStore(context.Context, types.NodeID, string, []byte) error {
	return errors.New("disk full")
}

func TestHandleIncoming_StoreRejected(t *testing.T) {
	tr := &fakeTransport{}
	s, err := New(peer(0xAA), tr, testConfig(), WithClock(clock.NewMock()), WithHandler(rejectingHandler{}))
	require.NoError(t, err)

	require.NoError(t, s.HandleIncoming(context.Background(), peer(1), &Store{Key: "k"}))
	s.ProcessReady(context.Background())

	sr := tr.Sent()[0].msg.(*StoreResponse)
	assert.False(t, sr.Stored)
	assert.Equal(t, "disk full", sr.Error)
}

// TestHandleIncoming_ResponseWithoutWaiter 测试无等待方的响应被丢弃，不会触发请求处理
func TestHandleIncoming_ResponseWithoutWaiter(t *testing.T) {
	s, tr := newTestService(t, clock.NewMock(), nil)

	resp := &Pong{Reply: Reply{RequestID: uuid.New(), Nonce: uuid.New()}}
	assert.ErrorIs(t, s.HandleIncoming(context.Background(), peer(1), resp), ErrNoPendingRequest)
	assert.Zero(t, s.QueueLen(), "响应不会生成回复")
	assert.Empty(t, tr.Sent())
}

// TestHandleIncoming_ReplayRejected 测试重复 nonce 被拒绝
func TestHandleIncoming_ReplayRejected(t *testing.T) {
	s, _ := newTestService(t, clock.NewMock(), nil)

	reqID := uuid.New()
	ch := make(chan Message, 1)
	s.pending[reqID] = &pendingResponse{ch: ch}

	resp := &Pong{Reply: Reply{RequestID: reqID, Nonce: uuid.New()}}
	require.NoError(t, s.HandleIncoming(context.Background(), peer(1), resp))
	assert.Same(t, resp, <-ch)

	// 重新登记同一请求，重放的响应仍被拒绝
	s.pending[reqID] = &pendingResponse{ch: make(chan Message, 1)}
	assert.ErrorIs(t, s.HandleIncoming(context.Background(), peer(1), resp), ErrReplay)
}

// TestHandleIncoming_MissingNonceRejected 测试不带 nonce 的响应被拒绝且不消耗等待项
func TestHandleIncoming_MissingNonceRejected(t *testing.T) {
	s, _ := newTestService(t, clock.NewMock(), nil)

	reqID := uuid.New()
	ch := make(chan Message, 1)
	s.pending[reqID] = &pendingResponse{ch: ch, target: peer(1)}

	resp := &Pong{Reply: Reply{RequestID: reqID}}
	assert.ErrorIs(t, s.HandleIncoming(context.Background(), peer(1), resp), ErrMissingNonce)
	assert.Equal(t, 1, s.PendingCount())
	assert.Empty(t, ch)
}

// TestHandleIncoming_WrongResponderRejected 测试只接受请求目标节点的响应
func TestHandleIncoming_WrongResponderRejected(t *testing.T) {
	s, _ := newTestService(t, clock.NewMock(), nil)

	reqID := uuid.New()
	ch := make(chan Message, 1)
	s.pending[reqID] = &pendingResponse{ch: ch, target: peer(1)}

	forged := &Pong{Reply: Reply{RequestID: reqID, Nonce: uuid.New()}}
	assert.ErrorIs(t, s.HandleIncoming(context.Background(), peer(2), forged), ErrUnexpectedResponder)
	assert.Equal(t, 1, s.PendingCount(), "来源不符的响应不消耗等待项")

	genuine := &Pong{Reply: Reply{RequestID: reqID, Nonce: uuid.New()}}
	require.NoError(t, s.HandleIncoming(context.Background(), peer(1), genuine))
	assert.Same(t, genuine, <-ch)
	assert.Zero(t, s.PendingCount())
}

// ============================================================================
// 清理
// ============================================================================

// TestCleanup_ExpiresOldEntries 测试过期等待项和排队消息被清理
func TestCleanup_ExpiresOldEntries(t *testing.T) {
	clk := clock.NewMock()
	s, _ := newTestService(t, clk, nil)

	oldCh := make(chan Message, 1)
	s.pending[uuid.New()] = &pendingResponse{ch: oldCh, created: clk.Now()}
	_, err := s.Enqueue(&Ping{}, peer(1))
	require.NoError(t, err)

	clk.Add(6 * time.Minute)
	s.pending[uuid.New()] = &pendingResponse{ch: make(chan Message, 1), created: clk.Now()}

	stats := s.Cleanup()
	assert.Equal(t, 1, stats.ExpiredPending)
	assert.Equal(t, 1, stats.ExpiredQueued)
	assert.Zero(t, stats.ClearedPending)
	assert.Equal(t, 1, s.PendingCount())
	assert.Zero(t, s.QueueLen())

	_, open := <-oldCh
	assert.False(t, open, "被清理的等待方收到通道关闭")
}

// TestCleanup_HardCap 测试等待项超过上限时整体清空
func TestCleanup_HardCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPendingResponses = 3
	clk := clock.NewMock()
	s, _ := newTestService(t, clk, cfg)

	for i := 0; i < 4; i++ {
		s.pending[uuid.New()] = &pendingResponse{ch: make(chan Message, 1), created: clk.Now()}
	}

	stats := s.Cleanup()
	assert.Equal(t, 4, stats.ClearedPending)
	assert.Zero(t, s.PendingCount())
}

func TestStartStop(t *testing.T) {
	s, _ := newTestService(t, clock.New(), nil)

	assert.ErrorIs(t, s.Stop(context.Background()), ErrNotStarted)
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
	require.NoError(t, s.Stop(context.Background()))
}
