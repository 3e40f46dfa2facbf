package memnet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dhtstore/internal/dht/messaging"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

func nodeID(b byte) types.NodeID {
	var id types.NodeID
	id[0] = b
	return id
}

// mapHandler 将 Store 请求写入内存 map
type mapHandler struct {
	messaging.CannedHandler
	mu     sync.Mutex
	values map[string][]byte
}

func (h *mapHandler) HandleStore(_ context.Context, _ types.NodeID, key string, value []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values[key] = value
	return nil
}

func (h *mapHandler) HandleFindValue(_ context.Context, _ types.NodeID, key string) ([]byte, bool, []types.DhtNode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.values[key]
	return v, ok, nil
}

func startService(t *testing.T, hub *Hub, id types.NodeID, opts ...messaging.Option) *messaging.Service {
	t.Helper()

	cfg := messaging.DefaultConfig()
	cfg.BaseDelay = 10 * time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond

	svc, err := messaging.New(id, hub.Endpoint(id), cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })
	return svc
}

func TestHub_PingRoundTrip(t *testing.T) {
	hub := NewHub()
	a := startService(t, hub, nodeID(1))
	startService(t, hub, nodeID(2))

	_, err := a.Ping(context.Background(), nodeID(2))
	require.NoError(t, err)

	sent, received := hub.Endpoint(nodeID(1)).Stats()
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, received)
	assert.Len(t, hub.Peers(), 2)
}

func TestHub_StoreAndFindValue(t *testing.T) {
	hub := NewHub()
	h := &mapHandler{values: make(map[string][]byte)}
	a := startService(t, hub, nodeID(1))
	startService(t, hub, nodeID(2), messaging.WithHandler(h))

	d := messaging.NewStoreDeliverer(a, time.Second)
	node := &types.DhtNode{Identity: types.PeerIdentity{ID: nodeID(2)}}
	require.NoError(t, d.Deliver(context.Background(), node, "k", []byte("v")))

	resp, err := a.FindValue(context.Background(), nodeID(2), "k")
	require.NoError(t, err)
	assert.True(t, resp.Found)
	assert.Equal(t, []byte("v"), resp.Value)
}

// TestHub_LinkDown 测试链路故障时消息重试耗尽，等待方收到通道关闭
func TestHub_LinkDown(t *testing.T) {
	hub := NewHub()
	a := startService(t, hub, nodeID(1))
	startService(t, hub, nodeID(2))
	hub.SetLinkDown(nodeID(1), nodeID(2), true)

	_, err := a.Ping(context.Background(), nodeID(2))
	assert.ErrorIs(t, err, messaging.ErrChannelClosed)

	hub.SetLinkDown(nodeID(1), nodeID(2), false)
	_, err = a.Ping(context.Background(), nodeID(2))
	assert.NoError(t, err)
}

// TestHub_ReturnPathDown 测试回程链路故障时请求超时
func TestHub_ReturnPathDown(t *testing.T) {
	hub := NewHub()
	a := startService(t, hub, nodeID(1))
	startService(t, hub, nodeID(2))
	hub.SetLinkDown(nodeID(2), nodeID(1), true)

	_, err := a.SendAndWait(context.Background(), &messaging.Ping{}, nodeID(2), 100*time.Millisecond)
	assert.ErrorIs(t, err, messaging.ErrTimeout)
}

func TestHub_IsolateAndClose(t *testing.T) {
	hub := NewHub()
	ep1 := hub.Endpoint(nodeID(1))
	ep2 := hub.Endpoint(nodeID(2))
	ep2.SetReceiver(receiverFunc(func(context.Context, types.NodeID, []byte) {}))

	require.NoError(t, ep1.Send(context.Background(), nodeID(2), []byte{1}))

	hub.Isolate(nodeID(2), true)
	assert.ErrorIs(t, ep1.Send(context.Background(), nodeID(2), []byte{1}), ErrUnreachable)
	hub.Isolate(nodeID(2), false)

	require.NoError(t, ep2.Close())
	assert.ErrorIs(t, ep1.Send(context.Background(), nodeID(2), []byte{1}), ErrUnreachable)
	assert.ErrorIs(t, ep2.Send(context.Background(), nodeID(1), []byte{1}), ErrClosed)
	assert.ErrorIs(t, ep1.Send(context.Background(), nodeID(9), []byte{1}), ErrUnreachable)
}

type receiverFunc func(ctx context.Context, from types.NodeID, payload []byte)

func (f receiverFunc) Receive(ctx context.Context, from types.NodeID, payload []byte) {
	f(ctx, from, payload)
}
