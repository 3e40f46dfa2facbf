package dhtstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// initializeTimeout 初始化超时（Fx App Start）
	initializeTimeout = 30 * time.Second

	// closeTimeout Close 使用的停止超时
	closeTimeout = 10 * time.Second
)

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期管理
// ════════════════════════════════════════════════════════════════════════════

// Start 启动节点
//
// 启动 Fx 应用（存储引擎、持久化恢复、消息层循环），
// 然后启动后台修复、完整性巡检循环。
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrNodeClosed
	}
	if n.started {
		return ErrAlreadyStarted
	}

	n.state = StateStarting
	logger.Info("正在启动节点", "node", n.self.ShortString())

	initCtx, initCancel := context.WithTimeout(ctx, initializeTimeout)
	defer initCancel()

	if err := n.app.Start(initCtx); err != nil {
		n.state = StateStopped
		n.closed = true
		n.releaseResources()
		logger.Error("节点初始化失败", "error", err)
		return fmt.Errorf("initialize failed: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	n.loopCancel = cancel
	n.startLoops(loopCtx)

	n.started = true
	n.state = StateRunning
	logger.Info("节点已启动",
		"node", n.self.ShortString(),
		"known_nodes", n.nodes.Len(),
		"tracked_keys", n.replication.Len())
	return nil
}

// Stop 停止节点
//
// 先停止后台循环，再按反向顺序停止 Fx 组件。停止后节点不可重新启动。
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrNodeClosed
	}
	if !n.started {
		return ErrNotStarted
	}

	n.state = StateStopping
	logger.Info("正在停止节点")

	n.loopCancel()
	n.loopWg.Wait()

	err := n.app.Stop(ctx)
	n.releaseEndpoint()
	n.started = false
	n.closed = true
	n.state = StateStopped
	if err != nil {
		logger.Error("停止节点失败", "error", err)
		return fmt.Errorf("stop fx app: %w", err)
	}

	logger.Info("节点已停止")
	return nil
}

// Close 关闭节点并释放所有资源
//
// 未启动的节点直接标记为关闭；重复调用返回 nil。
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	if !n.started {
		n.closed = true
		n.state = StateStopped
		n.releaseResources()
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := n.Stop(ctx); err != nil && !errors.Is(err, ErrNodeClosed) {
		return err
	}
	return nil
}

// releaseResources 释放未经 Fx 停止流程的资源
//
// Fx 在构建阶段已打开存储引擎；未启动或启动失败时由这里关闭。
func (n *Node) releaseResources() {
	if n.engine != nil {
		if err := n.engine.Close(); err != nil {
			logger.Warn("关闭存储引擎失败", "error", err)
		}
	}
	n.releaseEndpoint()
}
