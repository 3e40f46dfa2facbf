package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/dep2p/go-dhtstore/pkg/types"
)

// Ping 探测目标节点，返回往返时间
func (s *Service) Ping(ctx context.Context, target types.NodeID) (time.Duration, error) {
	start := s.clock.Now()
	resp, err := s.SendAndWait(ctx, &Ping{}, target, 0)
	if err != nil {
		return 0, err
	}
	if _, ok := resp.(*Pong); !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp.Kind())
	}
	return s.clock.Since(start), nil
}

// FindNode 向目标节点查询离 id 最近的节点
func (s *Service) FindNode(ctx context.Context, target, id types.NodeID) ([]types.DhtNode, error) {
	resp, err := s.SendAndWait(ctx, &FindNode{Target: id}, target, 0)
	if err != nil {
		return nil, err
	}
	r, ok := resp.(*FindNodeResponse)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp.Kind())
	}
	return r.Nodes, nil
}

// FindValue 向目标节点查询键对应的值
func (s *Service) FindValue(ctx context.Context, target types.NodeID, key string) (*FindValueResponse, error) {
	resp, err := s.SendAndWait(ctx, &FindValue{Key: key}, target, 0)
	if err != nil {
		return nil, err
	}
	r, ok := resp.(*FindValueResponse)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp.Kind())
	}
	return r, nil
}

// StoreValue 请求目标节点存储键值对，对端确认后返回 nil
func (s *Service) StoreValue(ctx context.Context, target types.NodeID, key string, value []byte, timeout time.Duration) error {
	resp, err := s.SendAndWait(ctx, &Store{Key: key, Value: value}, target, timeout)
	if err != nil {
		return err
	}
	r, ok := resp.(*StoreResponse)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp.Kind())
	}
	if !r.Stored {
		return NewMessagingError("store", ErrStoreRejected, r.Error)
	}
	return nil
}

// ============================================================================
//                              StoreDeliverer
// ============================================================================

// StoreDeliverer 通过 Store 消息投递副本
//
// 满足副本管理器的投递接口。
type StoreDeliverer struct {
	svc     *Service
	timeout time.Duration
}

// NewStoreDeliverer 创建副本投递器，timeout ≤ 0 时使用消息层默认超时
func NewStoreDeliverer(svc *Service, timeout time.Duration) *StoreDeliverer {
	return &StoreDeliverer{svc: svc, timeout: timeout}
}

// Deliver 将键值对投递到节点并等待确认
func (d *StoreDeliverer) Deliver(ctx context.Context, node *types.DhtNode, key string, value []byte) error {
	return d.svc.StoreValue(ctx, node.ID(), key, value, d.timeout)
}
