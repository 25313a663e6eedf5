package dao

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNoProvider 未配置钱包提供者
	ErrNoProvider = errors.New("no wallet provider available")
	// ErrNotConnected 钱包没有已授权账户
	ErrNotConnected = errors.New("wallet is not connected")
	// ErrInvalidVote 投票选项不是 YAY/NAY
	ErrInvalidVote = errors.New("invalid vote")
	// ErrInvalidTokenID NFT tokenId 为空或为负
	ErrInvalidTokenID = errors.New("invalid nft token id")
)

// Addresses 网关使用的合约地址
type Addresses struct {
	DAO common.Address
	NFT common.Address
}

// Proposal 提案快照（每次读取都来自链上，不缓存）
type Proposal struct {
	ProposalID uint64    `json:"proposalId"`
	NFTTokenID string    `json:"nftTokenId"`
	Deadline   time.Time `json:"deadline"`
	YayVotes   string    `json:"yayVotes"`
	NayVotes   string    `json:"nayVotes"`
	Executed   bool      `json:"executed"`
}

// Active 截止时间之前可以投票
func (p *Proposal) Active(now time.Time) bool {
	return now.Before(p.Deadline)
}

// Vote 投票选项，取值与合约枚举一致
type Vote uint8

const (
	VoteYay Vote = 0
	VoteNay Vote = 1
)

// ParseVote 只接受 "YAY" 与 "NAY"
func ParseVote(s string) (Vote, error) {
	switch s {
	case "YAY":
		return VoteYay, nil
	case "NAY":
		return VoteNay, nil
	default:
		return 0, fmt.Errorf("%w: %q (want YAY or NAY)", ErrInvalidVote, s)
	}
}

// Valid 是否为已定义的选项
func (v Vote) Valid() bool {
	return v == VoteYay || v == VoteNay
}

func (v Vote) String() string {
	switch v {
	case VoteYay:
		return "YAY"
	case VoteNay:
		return "NAY"
	default:
		return fmt.Sprintf("Vote(%d)", uint8(v))
	}
}

// ParseTokenID 解析十进制 tokenId
func ParseTokenID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTokenID, s)
	}
	return id, nil
}
