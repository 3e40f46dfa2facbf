package nodemgr

// Statistics 节点统计
type Statistics struct {
	// TotalNodes 已知节点数
	TotalNodes int

	// StorageNodes 提供存储的节点数
	StorageNodes int

	// HealthyNodes 在线且信誉不低于下限的节点数
	HealthyNodes int

	// NetworkHealth 网络健康度（HealthyNodes / TotalNodes，无节点时为 0）
	NetworkHealth float64

	// StorageUtilization 存储利用率（1 - 可用 / 总容量，无容量时为 0）
	StorageUtilization float64

	// TotalCapacity 总容量（字节）
	TotalCapacity uint64

	// AvailableSpace 可用空间（字节）
	AvailableSpace uint64

	// AverageReputation 平均信誉
	AverageReputation float64
}

// GetStatistics 返回节点统计
func (m *Manager) GetStatistics() Statistics {
	cutoff := m.clock.Now().Add(-m.cfg.LivenessWindow)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		stats  Statistics
		repSum uint64
	)
	stats.TotalNodes = len(m.nodes)

	for id, n := range m.nodes {
		rep := m.reputation[id]
		repSum += uint64(rep)

		if rep >= m.cfg.ReputationFloor && !n.LastSeen.Before(cutoff) {
			stats.HealthyNodes++
		}
		if n.Storage != nil {
			stats.StorageNodes++
			stats.TotalCapacity += n.Storage.TotalCapacity
			stats.AvailableSpace += min(n.Storage.AvailableSpace, n.Storage.TotalCapacity)
		}
	}

	if stats.TotalNodes > 0 {
		stats.NetworkHealth = float64(stats.HealthyNodes) / float64(stats.TotalNodes)
		stats.AverageReputation = float64(repSum) / float64(stats.TotalNodes)
	}
	if stats.TotalCapacity > 0 {
		stats.StorageUtilization = 1 - float64(stats.AvailableSpace)/float64(stats.TotalCapacity)
	}
	return stats
}
