// Package wallet 钱包提供者能力
//
// Provider 对应浏览器钱包注入的 EIP-1193 对象：按方法名发起请求、订阅链切换事件，
// 并额外暴露当前链的后端与已授权账户的签名选项。
package wallet

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/cryptodevs/daogate/client/core/transport"
)

// 请求方法
const (
	MethodAccounts        = "eth_accounts"
	MethodRequestAccounts = "eth_requestAccounts"
	MethodChainID         = "eth_chainId"
	MethodSwitchChain     = "wallet_switchEthereumChain"
)

// EventChainChanged 链切换事件
const EventChainChanged = "chainChanged"

// RequestArguments 请求参数
type RequestArguments struct {
	Method string
	Params []interface{}
}

// SwitchChainParameter wallet_switchEthereumChain 的参数
type SwitchChainParameter struct {
	ChainID string `json:"chainId"`
}

// ChainChangedHandler 链切换回调，参数为 0x 十六进制链ID
type ChainChangedHandler func(chainID string)

// Provider 钱包提供者
type Provider interface {
	// Request 发起请求，结果写入 result（指针，可为 nil）
	Request(ctx context.Context, args RequestArguments, result interface{}) error

	// On 订阅事件，返回取消订阅函数
	On(event string, handler ChainChangedHandler) (unsubscribe func(), err error)

	// Backend 当前所选链的后端
	Backend(ctx context.Context) (transport.Backend, error)

	// Transactor 已授权账户的签名选项
	Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error)
}

// EIP-1193 错误码
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeUnrecognizedChain = 4902
)

// ProviderError 提供者错误
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// Is 按错误码匹配，使 errors.Is(err, ErrUserRejected) 成立
func (e *ProviderError) Is(target error) bool {
	t, ok := target.(*ProviderError)
	return ok && t.Code == e.Code
}

// NewProviderError 创建提供者错误
func NewProviderError(code int, format string, args ...interface{}) *ProviderError {
	return &ProviderError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// 哨兵错误，仅用于 errors.Is 比较
var (
	ErrUserRejected      = &ProviderError{Code: CodeUserRejected, Message: "user rejected the request"}
	ErrUnauthorized      = &ProviderError{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrUnsupportedMethod = &ProviderError{Code: CodeUnsupportedMethod, Message: "unsupported method"}
	ErrDisconnected      = &ProviderError{Code: CodeDisconnected, Message: "disconnected"}
	ErrUnrecognizedChain = &ProviderError{Code: CodeUnrecognizedChain, Message: "unrecognized chain"}
)

// AssignResult 把请求结果写入调用方提供的指针
//
// 结果按 JSON 往返转换，与真实钱包的 JSON-RPC 边界保持一致。
func AssignResult(value, result interface{}) error {
	if result == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// ParseSwitchChainParams 解析 wallet_switchEthereumChain 的 [{chainId}] 参数
func ParseSwitchChainParams(params []interface{}) (string, error) {
	if len(params) == 0 {
		return "", NewProviderError(CodeUnrecognizedChain, "missing chainId parameter")
	}
	var param SwitchChainParameter
	if err := AssignResult(params[0], &param); err != nil || param.ChainID == "" {
		return "", NewProviderError(CodeUnrecognizedChain, "invalid chainId parameter")
	}
	return param.ChainID, nil
}
