package crypto

import (
	sha256 "github.com/minio/sha256-simd"

	"github.com/dep2p/go-dhtstore/pkg/types"
)

// ============================================================================
//                              NodeID 派生
// ============================================================================

// NodeIDFromPublicKey 从公钥派生 NodeID
//
// 派生算法：SHA256(原始公钥字节)
func NodeIDFromPublicKey(pub PublicKey) (types.NodeID, error) {
	if pub == nil {
		return types.EmptyNodeID, ErrNilPublicKey
	}
	raw, err := pub.Raw()
	if err != nil {
		return types.EmptyNodeID, err
	}
	return types.NodeID(sha256.Sum256(raw)), nil
}
