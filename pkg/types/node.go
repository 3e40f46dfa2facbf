package types

import (
	"time"
)

// ============================================================================
//                              节点记录
// ============================================================================

// Address 节点网络地址（multiaddr 字符串形式，如 /ip4/1.2.3.4/udp/4001/quic-v1）
type Address string

// PeerIdentity 节点身份
type PeerIdentity struct {
	// ID 节点 ID
	ID NodeID `cbor:"1,keyasint" json:"id"`

	// PublicKey 原始公钥字节
	PublicKey []byte `cbor:"2,keyasint" json:"public_key"`

	// DeviceID 设备标识（可选）
	DeviceID string `cbor:"3,keyasint,omitempty" json:"device_id,omitempty"`

	// DID 去中心化标识（可选）
	DID string `cbor:"4,keyasint,omitempty" json:"did,omitempty"`
}

// StorageTier 存储层级
type StorageTier string

const (
	// TierHot 热存储
	TierHot StorageTier = "hot"
	// TierWarm 温存储
	TierWarm StorageTier = "warm"
	// TierCold 冷存储
	TierCold StorageTier = "cold"
	// TierArchive 归档存储
	TierArchive StorageTier = "archive"
)

// StorageCapabilities 节点存储能力
type StorageCapabilities struct {
	// AvailableSpace 可用空间（字节）
	AvailableSpace uint64 `cbor:"1,keyasint" json:"available_space"`

	// TotalCapacity 总容量（字节）
	TotalCapacity uint64 `cbor:"2,keyasint" json:"total_capacity"`

	// PricePerUnit 单位价格
	PricePerUnit uint64 `cbor:"3,keyasint" json:"price_per_unit"`

	// SupportedTiers 支持的存储层级
	SupportedTiers []StorageTier `cbor:"4,keyasint" json:"supported_tiers"`

	// Region 所在区域
	Region string `cbor:"5,keyasint" json:"region"`

	// Uptime 在线率（0.0 - 1.0）
	Uptime float64 `cbor:"6,keyasint" json:"uptime"`
}

// DhtNode DHT 节点记录
//
// 首次被观察到时创建；信誉和 LastSeen 随后更新。
// 信誉值单独由节点管理器按 ID 维护，Reputation 字段是读取时的快照。
type DhtNode struct {
	// Identity 节点身份
	Identity PeerIdentity `cbor:"1,keyasint" json:"identity"`

	// Addresses 有序地址列表（优先级从高到低）
	Addresses []Address `cbor:"2,keyasint" json:"addresses"`

	// Reputation 信誉分（[0, MaxUint32]）
	Reputation uint32 `cbor:"3,keyasint" json:"reputation"`

	// LastSeen 最后活跃时间
	LastSeen time.Time `cbor:"4,keyasint" json:"last_seen"`

	// Storage 存储能力，nil 表示该节点不提供存储
	Storage *StorageCapabilities `cbor:"5,keyasint,omitempty" json:"storage,omitempty"`
}

// ID 返回节点 ID
func (n *DhtNode) ID() NodeID {
	return n.Identity.ID
}

// HasStorage 节点是否提供存储
func (n *DhtNode) HasStorage() bool {
	return n.Storage != nil
}

// PrimaryAddress 返回首选地址，没有地址时返回空串
func (n *DhtNode) PrimaryAddress() Address {
	if len(n.Addresses) == 0 {
		return ""
	}
	return n.Addresses[0]
}

// Clone 深拷贝节点记录
func (n *DhtNode) Clone() *DhtNode {
	if n == nil {
		return nil
	}
	clone := *n
	if n.Identity.PublicKey != nil {
		clone.Identity.PublicKey = append([]byte(nil), n.Identity.PublicKey...)
	}
	if n.Addresses != nil {
		clone.Addresses = append([]Address(nil), n.Addresses...)
	}
	if n.Storage != nil {
		s := *n.Storage
		if n.Storage.SupportedTiers != nil {
			s.SupportedTiers = append([]StorageTier(nil), n.Storage.SupportedTiers...)
		}
		clone.Storage = &s
	}
	return &clone
}
