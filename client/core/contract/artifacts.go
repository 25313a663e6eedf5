// Package contract provides the DAO, membership-token and marketplace ABIs and the
// per-call contract handles built on top of them.
package contract

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

//go:embed abi/*.json
var abiFS embed.FS

// 合约方法名
const (
	MethodCreateProposal  = "createProposal"
	MethodExecuteProposal = "executeProposal"
	MethodNumProposals    = "numProposals"
	MethodProposals       = "proposals"
	MethodVoteOnProposal  = "voteOnProposal"
	MethodWithdrawEther   = "withdrawEther"
	MethodOwner           = "owner"

	MethodBalanceOf           = "balanceOf"
	MethodOwnerOf             = "ownerOf"
	MethodTokenOfOwnerByIndex = "tokenOfOwnerByIndex"
	MethodTotalSupply         = "totalSupply"

	MethodAvailable = "available"
	MethodGetPrice  = "getPrice"
	MethodPurchase  = "purchase"
	MethodTokens    = "tokens"
)

var (
	// ErrInvalidArtifact 构件文件缺少 abi 或 bytecode
	ErrInvalidArtifact = errors.New("invalid contract artifact")
)

// Artifact Hardhat 编译构件（hh-sol-artifact-1）
type Artifact struct {
	ContractName string
	ABI          abi.ABI
	Bytecode     []byte // 部署字节码，仅部署时需要
}

// hardhatArtifact 构件文件的 JSON 形态
type hardhatArtifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode,omitempty"`
}

// ParseArtifact 解析 Hardhat 构件 JSON
func ParseArtifact(data []byte) (*Artifact, error) {
	var raw hardhatArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	if len(raw.ABI) == 0 {
		return nil, fmt.Errorf("%w: %s has no abi", ErrInvalidArtifact, raw.ContractName)
	}

	parsed, err := abi.JSON(strings.NewReader(string(raw.ABI)))
	if err != nil {
		return nil, fmt.Errorf("parse abi of %s: %w", raw.ContractName, err)
	}

	artifact := &Artifact{
		ContractName: raw.ContractName,
		ABI:          parsed,
	}

	if raw.Bytecode != "" && raw.Bytecode != "0x" {
		code, err := hexutil.Decode(raw.Bytecode)
		if err != nil {
			return nil, fmt.Errorf("decode bytecode of %s: %w", raw.ContractName, err)
		}
		artifact.Bytecode = code
	}

	return artifact, nil
}

// LoadArtifact 从文件加载构件，部署时要求 bytecode 非空
func LoadArtifact(path string) (*Artifact, error) {
	//nolint:gosec // G304: 构件路径来自命令行参数
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	artifact, err := ParseArtifact(data)
	if err != nil {
		return nil, err
	}
	if len(artifact.Bytecode) == 0 {
		return nil, fmt.Errorf("%w: %s has no bytecode", ErrInvalidArtifact, path)
	}
	return artifact, nil
}

var (
	embeddedOnce sync.Once
	embedded     map[string]*Artifact
	embeddedErr  error
)

func loadEmbedded() {
	embedded = make(map[string]*Artifact)
	for _, name := range []string{"CryptoDevsDAO", "CryptoDevsNFT", "FakeNFTMarketplace"} {
		data, err := abiFS.ReadFile("abi/" + name + ".json")
		if err != nil {
			embeddedErr = fmt.Errorf("read embedded abi %s: %w", name, err)
			return
		}
		artifact, err := ParseArtifact(data)
		if err != nil {
			embeddedErr = err
			return
		}
		embedded[name] = artifact
	}
}

func mustEmbedded(name string) *abi.ABI {
	embeddedOnce.Do(loadEmbedded)
	if embeddedErr != nil {
		panic(embeddedErr)
	}
	return &embedded[name].ABI
}

// DAOABI CryptoDevsDAO 合约接口
func DAOABI() *abi.ABI { return mustEmbedded("CryptoDevsDAO") }

// NFTABI 会员 NFT 合约接口
func NFTABI() *abi.ABI { return mustEmbedded("CryptoDevsNFT") }

// MarketplaceABI FakeNFTMarketplace 合约接口
func MarketplaceABI() *abi.ABI { return mustEmbedded("FakeNFTMarketplace") }
