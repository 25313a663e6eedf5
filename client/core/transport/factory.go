package transport

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrNoEndpoints 没有配置任何端点
	ErrNoEndpoints = errors.New("no endpoints configured")

	// ErrChainMismatch 节点报告的链ID与期望不符
	ErrChainMismatch = errors.New("chain id mismatch")
)

// EndpointConfig 端点配置
type EndpointConfig struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"` // 优先级,数字越小越优先
	URL      string `json:"url"`      // http(s):// 或 ws(s):// 地址
}

// Dial 连接单个节点端点
func Dial(ctx context.Context, url string) (Backend, error) {
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return ethclient.NewClient(rpcClient), nil
}

// DialFirst 按优先级依次连接端点，返回第一个报告 expectedChainID 的节点
// expectedChainID 为 nil 时不校验链ID，只要求节点可达
//
// 这里只做连接期的端点选择，连接建立后的调用失败不会切换端点
func DialFirst(ctx context.Context, endpoints []EndpointConfig, expectedChainID *big.Int) (Backend, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	ordered := make([]EndpointConfig, len(endpoints))
	copy(ordered, endpoints)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	var errs []error
	for _, ep := range ordered {
		if ep.URL == "" {
			continue
		}

		backend, err := Dial(ctx, ep.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ep.Name, err))
			continue
		}

		chainID, err := backend.ChainID(ctx)
		if err != nil {
			backend.Close()
			errs = append(errs, fmt.Errorf("%s: query chain id: %w", ep.Name, err))
			continue
		}

		if expectedChainID != nil && chainID.Cmp(expectedChainID) != 0 {
			backend.Close()
			errs = append(errs, fmt.Errorf("%s: %w: want %s, got %s", ep.Name, ErrChainMismatch, expectedChainID, chainID))
			continue
		}

		return backend, nil
	}

	if len(errs) == 0 {
		return nil, ErrNoEndpoints
	}
	return nil, fmt.Errorf("all endpoints failed: %w", errors.Join(errs...))
}
