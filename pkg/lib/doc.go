// Package lib 包含基础设施工具库
//
// 本目录包含与架构组件无关的通用工具库：
//
//   - crypto: 密码学原语（Ed25519 密钥、带时间戳签名、NodeID 派生）
//   - log: 日志封装（slog，按组件命名）
//
// # 与 pkg/ 其他目录的关系
//
//   - types/: 公共类型定义
//   - lib/: 基础设施工具库（本目录）
//
// # 使用示例
//
//	import (
//	    "github.com/dep2p/go-dhtstore/pkg/lib/crypto"
//	    "github.com/dep2p/go-dhtstore/pkg/lib/log"
//	)
package lib
