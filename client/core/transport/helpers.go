package transport

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrInvalidChainID 链ID格式错误
var ErrInvalidChainID = errors.New("invalid chain id")

// ParseChainID 解析链ID，支持 0x 十六进制（允许前导零、大小写混用）与十进制
//
//	"0x7a69"   → 31337
//	"0x07A69"  → 31337
//	"31337"    → 31337
func ParseChainID(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidChainID)
	}

	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}
	if digits == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChainID, s)
	}

	id, ok := new(big.Int).SetString(digits, base)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChainID, s)
	}
	return id, nil
}

// FormatChainID 把链ID编码为钱包使用的 0x 十六进制（无前导零、小写）
func FormatChainID(id *big.Int) string {
	if id == nil {
		return ""
	}
	return hexutil.EncodeBig(id)
}

// NormalizeChainID 把任意合法写法规范化为 FormatChainID 的形式
func NormalizeChainID(s string) (string, error) {
	id, err := ParseChainID(s)
	if err != nil {
		return "", err
	}
	return FormatChainID(id), nil
}
