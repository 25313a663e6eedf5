// Package deploy 部署 FakeNFTMarketplace 与 CryptoDevsDAO
//
// 顺序固定：先部署市场，再以 (市场地址, NFT 集合地址) 部署 DAO 并注入初始资金。
package deploy

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/cryptodevs/daogate/client/core/builder"
	"github.com/cryptodevs/daogate/client/core/contract"
	"github.com/cryptodevs/daogate/client/core/transport"
	"github.com/cryptodevs/daogate/internal/core/infrastructure/log"
	logiface "github.com/cryptodevs/daogate/pkg/interfaces/infrastructure/log"
)

// DefaultFunding DAO 部署时转入的金额
const DefaultFunding = "0.001"

var (
	// ErrMissingArtifact 未提供构件
	ErrMissingArtifact = errors.New("missing contract artifact")
	// ErrMissingNFT 未提供会员 NFT 集合地址
	ErrMissingNFT = errors.New("missing nft collection address")
)

// Request 部署请求
type Request struct {
	Marketplace   *contract.Artifact
	DAO           *contract.Artifact
	NFTCollection common.Address
	Funding       *big.Int // nil 表示 DefaultFunding
}

// Result 部署结果
type Result struct {
	Marketplace   common.Address `json:"marketplace"`
	MarketplaceTx common.Hash    `json:"marketplaceTx"`
	DAO           common.Address `json:"dao"`
	DAOTx         common.Hash    `json:"daoTx"`
	Funding       string         `json:"funding"`
}

// Deployer 部署执行器
type Deployer struct {
	backend transport.Backend
	opts    *bind.TransactOpts
	logger  logiface.Logger
}

// New 创建部署执行器
func New(backend transport.Backend, opts *bind.TransactOpts, logger logiface.Logger) *Deployer {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Deployer{backend: backend, opts: opts, logger: logger}
}

// Run 依次部署市场与 DAO
func (d *Deployer) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Marketplace == nil || req.DAO == nil {
		return nil, ErrMissingArtifact
	}
	if req.NFTCollection == (common.Address{}) {
		return nil, ErrMissingNFT
	}

	funding := req.Funding
	if funding == nil {
		funding = builder.MustParseEther(DefaultFunding).Wei()
	}
	amount, err := builder.NewAmountFromWei(funding)
	if err != nil {
		return nil, fmt.Errorf("funding: %w", err)
	}

	// 1. 市场
	market, err := contract.Deploy(ctx, d.backend, d.opts, req.Marketplace)
	if err != nil {
		return nil, fmt.Errorf("deploy marketplace: %w", err)
	}
	d.logger.Infof("FakeNFTMarketplace deployed to: %s", market.Address.Hex())

	// 2. DAO（payable 构造函数）
	daoOpts := *d.opts
	daoOpts.Value = new(big.Int).Set(funding)
	dao, err := contract.Deploy(ctx, d.backend, &daoOpts, req.DAO, market.Address, req.NFTCollection)
	if err != nil {
		return nil, fmt.Errorf("deploy dao: %w", err)
	}
	d.logger.Infof("CryptoDevsDAO deployed to: %s", dao.Address.Hex())

	return &Result{
		Marketplace:   market.Address,
		MarketplaceTx: market.TxHash,
		DAO:           dao.Address,
		DAOTx:         dao.TxHash,
		Funding:       amount.String(),
	}, nil
}
