package wallet

import (
	"github.com/cryptodevs/daogate/client/core/transport"
)

// UnknownNetwork 未收录链ID的显示名
const UnknownNetwork = "Unknown Network"

// Networks 链ID（0x 十六进制）→ 网络名
type Networks map[string]string

// DefaultNetworks 内置网络表
var DefaultNetworks = Networks{
	"0x1":      "Ethereum Mainnet",
	"0x5":      "Goerli Testnet",
	"0xaa36a7": "Sepolia Testnet",
	"0x4268":   "Holesky Testnet",
	"0x89":     "Polygon Mainnet",
	"0x13881":  "Polygon Mumbai Testnet",
	"0x13882":  "Polygon Amoy Testnet",
	"0x7a69":   "Hardhat Network",
	"0x539":    "Localhost 8545",
}

// Name 查询网络名，链ID大小写与前导零不敏感
func (n Networks) Name(chainID string) string {
	key, err := transport.NormalizeChainID(chainID)
	if err != nil {
		return UnknownNetwork
	}
	if name, ok := n[key]; ok {
		return name
	}
	// 表中的键也可能不是规范写法
	for id, name := range n {
		if normalized, err := transport.NormalizeChainID(id); err == nil && normalized == key {
			return name
		}
	}
	return UnknownNetwork
}
