package dao

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cryptodevs/daogate/client/core/contract"
)

// ===== 只读 =====

// GetNumProposals DAO 中的提案总数（十进制字符串）
func (g *Gateway) GetNumProposals(ctx context.Context) (string, error) {
	handle, from, err := g.handleFor(ctx, g.addresses.DAO, contract.DAOABI())
	if err != nil {
		return "", err
	}

	out, err := handle.Call(ctx, from, contract.MethodNumProposals)
	if err != nil {
		return "", err
	}
	n, err := uintResult(out, 0)
	if err != nil {
		return "", fmt.Errorf("%s: %w", contract.MethodNumProposals, err)
	}
	return n.String(), nil
}

// FetchProposal 读取单个提案
func (g *Gateway) FetchProposal(ctx context.Context, id uint64) (*Proposal, error) {
	handle, from, err := g.handleFor(ctx, g.addresses.DAO, contract.DAOABI())
	if err != nil {
		return nil, err
	}
	return fetchProposal(ctx, handle, from, id)
}

// FetchAllProposals 依次读取 0..count-1，任何一个失败即整体失败
func (g *Gateway) FetchAllProposals(ctx context.Context, count uint64) ([]*Proposal, error) {
	proposals := make([]*Proposal, 0, count)
	if count == 0 {
		return proposals, nil
	}

	handle, from, err := g.handleFor(ctx, g.addresses.DAO, contract.DAOABI())
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < count; i++ {
		p, err := fetchProposal(ctx, handle, from, i)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	return proposals, nil
}

func fetchProposal(ctx context.Context, handle *contract.Handle, from common.Address, id uint64) (*Proposal, error) {
	out, err := handle.Call(ctx, from, contract.MethodProposals, new(big.Int).SetUint64(id))
	if err != nil {
		return nil, fmt.Errorf("fetch proposal %d: %w", id, err)
	}
	p, err := decodeProposal(id, out)
	if err != nil {
		return nil, fmt.Errorf("decode proposal %d: %w", id, err)
	}
	return p, nil
}

// decodeProposal proposals(id) 返回 (nftTokenId, deadline, yayVotes, nayVotes, executed)
func decodeProposal(id uint64, out []interface{}) (*Proposal, error) {
	if len(out) != 5 {
		return nil, fmt.Errorf("expected 5 outputs, got %d", len(out))
	}
	values := make([]*big.Int, 4)
	for i := range values {
		v, err := uintResult(out, i)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	executed, ok := out[4].(bool)
	if !ok {
		return nil, fmt.Errorf("output 4: unexpected type %T", out[4])
	}
	if !values[1].IsInt64() {
		return nil, fmt.Errorf("deadline %s out of range", values[1])
	}

	return &Proposal{
		ProposalID: id,
		NFTTokenID: values[0].String(),
		Deadline:   time.Unix(values[1].Int64(), 0),
		YayVotes:   values[2].String(),
		NayVotes:   values[3].String(),
		Executed:   executed,
	}, nil
}

// ===== 交易 =====

// CreateProposal 为 nftTokenID 创建购买提案，等待上链后返回交易哈希
func (g *Gateway) CreateProposal(ctx context.Context, nftTokenID *big.Int) (common.Hash, error) {
	if nftTokenID == nil || nftTokenID.Sign() < 0 {
		return common.Hash{}, ErrInvalidTokenID
	}
	return g.transact(ctx, contract.MethodCreateProposal, new(big.Int).Set(nftTokenID))
}

// VoteOnProposal 对提案投票，非法选项在发起任何调用前被拒绝
func (g *Gateway) VoteOnProposal(ctx context.Context, id uint64, vote Vote) (common.Hash, error) {
	if !vote.Valid() {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrInvalidVote, vote)
	}
	return g.transact(ctx, contract.MethodVoteOnProposal, new(big.Int).SetUint64(id), uint8(vote))
}

// ExecuteProposal 执行已过截止时间的提案
func (g *Gateway) ExecuteProposal(ctx context.Context, id uint64) (common.Hash, error) {
	return g.transact(ctx, contract.MethodExecuteProposal, new(big.Int).SetUint64(id))
}

// transact 以签名账户调用 DAO 合约并等待回执
func (g *Gateway) transact(ctx context.Context, method string, args ...interface{}) (common.Hash, error) {
	handle, from, err := g.handleFor(ctx, g.addresses.DAO, contract.DAOABI())
	if err != nil {
		return common.Hash{}, err
	}
	opts, err := g.provider.Transactor(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signer %s: %w", from.Hex(), err)
	}

	logger := g.logger.With("method", method, "from", from.Hex())
	logger.Debug("sending transaction")

	receipt, err := handle.TransactAndWait(ctx, opts, method, args...)
	if err != nil {
		if receipt != nil {
			logger.With("tx", receipt.TxHash.Hex()).Warn("transaction failed")
			return receipt.TxHash, err
		}
		return common.Hash{}, err
	}

	logger.With("tx", receipt.TxHash.Hex(), "block", receipt.BlockNumber.String()).Info("transaction mined")
	return receipt.TxHash, nil
}
