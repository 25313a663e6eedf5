package dao

import (
	"context"
	"fmt"
	"math/big"

	"github.com/cryptodevs/daogate/client/core/contract"
)

// GetDaoTreasuryBalance DAO 合约地址上的原生币余额（wei）
func (g *Gateway) GetDaoTreasuryBalance(ctx context.Context) (*big.Int, error) {
	if g.provider == nil {
		return nil, ErrNoProvider
	}
	backend, err := g.provider.Backend(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain backend: %w", err)
	}

	balance, err := backend.BalanceAt(ctx, g.addresses.DAO, nil)
	if err != nil {
		return nil, fmt.Errorf("treasury balance of %s: %w", g.addresses.DAO.Hex(), err)
	}
	g.logger.With("dao", g.addresses.DAO.Hex(), "wei", balance.String()).Debug("treasury balance")
	return balance, nil
}

// GetUserMembershipBalance 签名账户持有的会员 NFT 数量（十进制字符串）
func (g *Gateway) GetUserMembershipBalance(ctx context.Context) (string, error) {
	handle, from, err := g.handleFor(ctx, g.addresses.NFT, contract.NFTABI())
	if err != nil {
		return "", err
	}

	out, err := handle.Call(ctx, from, contract.MethodBalanceOf, from)
	if err != nil {
		return "", err
	}
	balance, err := uintResult(out, 0)
	if err != nil {
		return "", fmt.Errorf("%s: %w", contract.MethodBalanceOf, err)
	}
	return balance.String(), nil
}

// uintResult 取出第 i 个 uint256 返回值
func uintResult(out []interface{}, i int) (*big.Int, error) {
	if len(out) <= i {
		return nil, fmt.Errorf("expected at least %d outputs, got %d", i+1, len(out))
	}
	v, ok := out[i].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("output %d: unexpected type %T", i, out[i])
	}
	return v, nil
}
