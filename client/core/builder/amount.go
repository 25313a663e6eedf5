// Package builder provides amount handling for native-currency values.
package builder

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// Amount 表示以太金额（最小单位 wei）
//
// 金额系统：
//   - 1 ether = 10^18 wei
//   - 使用 *big.Int 确保精确计算，解析与格式化都不经过浮点数
type Amount struct {
	value *big.Int // 最小单位 wei
}

// 常量定义
const (
	// DecimalPlaces ether 的小数位数
	DecimalPlaces = 18
)

var (
	// ErrInvalidAmount 无效的金额
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNegativeAmount 负数金额
	ErrNegativeAmount = errors.New("negative amount")

	// ErrInsufficientAmount 金额不足
	ErrInsufficientAmount = errors.New("insufficient amount")

	// weiPerEther 10^18
	weiPerEther = big.NewInt(params.Ether)
)

// ParseEther 把十进制 ether 字符串解析为 Amount
//
// 示例：
//
//	ParseEther("1")     → 10^18 wei
//	ParseEther("0.001") → 10^15 wei
//	ParseEther("1.5")   → 1.5×10^18 wei
func ParseEther(s string) (*Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "-") {
		return nil, ErrNegativeAmount
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if hasDot && frac == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, s)
	}
	if len(frac) > DecimalPlaces {
		return nil, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, DecimalPlaces)
	}
	if whole == "" {
		whole = "0"
	}

	digits := whole + frac + strings.Repeat("0", DecimalPlaces-len(frac))
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, s)
		}
	}

	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, s)
	}
	return &Amount{value: value}, nil
}

// MustParseEther 解析失败时 panic，仅用于常量
func MustParseEther(s string) *Amount {
	a, err := ParseEther(s)
	if err != nil {
		panic(err)
	}
	return a
}

// NewAmountFromWei 从 wei 创建Amount
func NewAmountFromWei(value *big.Int) (*Amount, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: nil value", ErrInvalidAmount)
	}
	if value.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	// 复制value，避免外部修改
	return &Amount{value: new(big.Int).Set(value)}, nil
}

// Zero 返回零金额
func Zero() *Amount {
	return &Amount{value: big.NewInt(0)}
}

// Sub 减法：a - b
// 如果结果为负数，返回错误
func (a *Amount) Sub(b *Amount) (*Amount, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("%w: nil amount", ErrInvalidAmount)
	}

	result := new(big.Int).Sub(a.value, b.value)
	if result.Sign() < 0 {
		return nil, ErrInsufficientAmount
	}
	return &Amount{value: result}, nil
}

// Cmp 比较两个金额，nil 视为最小
func (a *Amount) Cmp(b *Amount) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.value.Cmp(b.value)
}

// IsZero 判断金额是否为零
func (a *Amount) IsZero() bool {
	return a == nil || a.value.Sign() == 0
}

// Wei 返回 big.Int 副本
func (a *Amount) Wei() *big.Int {
	if a == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.value)
}

// String 转换为 ether 字符串（移除末尾的0）
//
// 示例：
//
//	10^15 wei → "0.001"
//	10^18 wei → "1"
//	1 wei     → "0.000000000000000001"
func (a *Amount) String() string {
	if a == nil {
		return "0"
	}

	whole, frac := new(big.Int).QuoRem(a.value, weiPerEther, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}

	fracStr := frac.String()
	fracStr = strings.Repeat("0", DecimalPlaces-len(fracStr)) + fracStr
	fracStr = strings.TrimRight(fracStr, "0")
	return whole.String() + "." + fracStr
}

// StringWei 转换为 wei 字符串
func (a *Amount) StringWei() string {
	if a == nil {
		return "0"
	}
	return a.value.String()
}
