package testutil

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/cryptodevs/daogate/client/core/contract"
)

// 部署字节码（内存链按前缀识别）
var (
	MarketplaceBytecode = []byte{0x60, 0x80, 0x60, 0x40, 0x52, 'F', 'N', 'M'}
	DAOBytecode         = []byte{0x60, 0x80, 0x60, 0x40, 0x52, 'D', 'A', 'O'}
	NFTBytecode         = []byte{0x60, 0x80, 0x60, 0x40, 0x52, 'N', 'F', 'T'}
)

// ProposalDuration 提案投票期
const ProposalDuration = 5 * time.Minute

// DefaultNFTPrice 市场默认售价 0.0001 ether
var DefaultNFTPrice = big.NewInt(100_000_000_000_000)

// 回滚原因
const (
	ReasonNotMember          = "NOT_A_DAO_MEMBER"
	ReasonNotForSale         = "NFT_NOT_FOR_SALE"
	ReasonDeadlineExceeded   = "DEADLINE_EXCEEDED"
	ReasonAlreadyVoted       = "ALREADY_VOTED"
	ReasonDeadlineNotReached = "DEADLINE_NOT_EXCEEDED"
	ReasonAlreadyExecuted    = "PROPOSAL_ALREADY_EXECUTED"
	ReasonNotEnoughFunds     = "NOT_ENOUGH_FUNDS"
	ReasonNotOwner           = "Ownable: caller is not the owner"
	ReasonWrongPrice         = "INCORRECT_NFT_PRICE"
)

// RegisterStandardContracts 注册市场与 DAO 的部署字节码
func (c *Chain) RegisterStandardContracts(price *big.Int) {
	c.RegisterCode(MarketplaceBytecode, contract.MarketplaceABI(), func(env *Env, args []interface{}) (Contract, error) {
		return NewMarketplace(price), nil
	})
	c.RegisterCode(DAOBytecode, contract.DAOABI(), func(env *Env, args []interface{}) (Contract, error) {
		return &DAO{
			owner:       env.Caller,
			marketplace: args[0].(common.Address),
			nft:         args[1].(common.Address),
		}, nil
	})
}

// MarketplaceArtifact 内存链可部署的市场构件
func MarketplaceArtifact() *contract.Artifact {
	return &contract.Artifact{ContractName: "FakeNFTMarketplace", ABI: *contract.MarketplaceABI(), Bytecode: MarketplaceBytecode}
}

// DAOArtifact 内存链可部署的 DAO 构件
func DAOArtifact() *contract.Artifact {
	return &contract.Artifact{ContractName: "CryptoDevsDAO", ABI: *contract.DAOABI(), Bytecode: DAOBytecode}
}

func u256(v interface{}) *big.Int {
	if b, ok := v.(*big.Int); ok && b != nil {
		return b
	}
	return new(big.Int)
}

// ===== 会员 NFT =====

// MembershipNFT 可枚举 ERC721 的最小实现
type MembershipNFT struct {
	owners map[string]common.Address
	held   map[common.Address][]*big.Int
	supply int64
}

// NewMembershipNFT 创建会员 NFT
func NewMembershipNFT() *MembershipNFT {
	return &MembershipNFT{
		owners: make(map[string]common.Address),
		held:   make(map[common.Address][]*big.Int),
	}
}

// Mint 铸造一枚给 to，返回 tokenId（测试准备阶段调用）
func (n *MembershipNFT) Mint(to common.Address) *big.Int {
	id := big.NewInt(n.supply)
	n.supply++
	n.owners[id.String()] = to
	n.held[to] = append(n.held[to], id)
	return id
}

// ABI 实现 Contract
func (n *MembershipNFT) ABI() *abi.ABI { return contract.NFTABI() }

// Run 实现 Contract
func (n *MembershipNFT) Run(env *Env, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case contract.MethodBalanceOf:
		owner := args[0].(common.Address)
		return []interface{}{big.NewInt(int64(len(n.held[owner])))}, nil
	case contract.MethodTokenOfOwnerByIndex:
		owner := args[0].(common.Address)
		index := u256(args[1])
		tokens := n.held[owner]
		if !index.IsInt64() || index.Int64() >= int64(len(tokens)) {
			return nil, Revert("ERC721Enumerable: owner index out of bounds")
		}
		return []interface{}{new(big.Int).Set(tokens[index.Int64()])}, nil
	case contract.MethodOwnerOf:
		owner, ok := n.owners[u256(args[0]).String()]
		if !ok {
			return nil, Revert("ERC721: invalid token ID")
		}
		return []interface{}{owner}, nil
	case contract.MethodTotalSupply:
		return []interface{}{big.NewInt(n.supply)}, nil
	default:
		return nil, Revert("unsupported")
	}
}

// ===== 市场 =====

// Marketplace 假 NFT 市场
type Marketplace struct {
	price  *big.Int
	tokens map[string]common.Address
}

// NewMarketplace 创建市场
func NewMarketplace(price *big.Int) *Marketplace {
	if price == nil {
		price = DefaultNFTPrice
	}
	return &Marketplace{price: new(big.Int).Set(price), tokens: make(map[string]common.Address)}
}

// ABI 实现 Contract
func (m *Marketplace) ABI() *abi.ABI { return contract.MarketplaceABI() }

// Owner 已售出 token 的持有者
func (m *Marketplace) Owner(tokenID *big.Int) common.Address {
	return m.tokens[tokenID.String()]
}

// Run 实现 Contract
func (m *Marketplace) Run(env *Env, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case contract.MethodGetPrice:
		return []interface{}{new(big.Int).Set(m.price)}, nil
	case contract.MethodAvailable:
		_, sold := m.tokens[u256(args[0]).String()]
		return []interface{}{!sold}, nil
	case contract.MethodTokens:
		return []interface{}{m.tokens[u256(args[0]).String()]}, nil
	case contract.MethodPurchase:
		if env.Value.Cmp(m.price) != 0 {
			return nil, Revert(ReasonWrongPrice)
		}
		if env.Commit {
			m.tokens[u256(args[0]).String()] = env.Caller
		}
		return nil, nil
	default:
		return nil, Revert("unsupported")
	}
}

// ===== DAO =====

type proposal struct {
	tokenID  *big.Int
	deadline int64
	yay      *big.Int
	nay      *big.Int
	executed bool
	voters   map[string]bool
}

// DAO CryptoDevsDAO 的内存实现
type DAO struct {
	owner       common.Address
	marketplace common.Address
	nft         common.Address
	proposals   []*proposal
}

// ABI 实现 Contract
func (d *DAO) ABI() *abi.ABI { return contract.DAOABI() }

// Marketplace 构造时传入的市场地址
func (d *DAO) Marketplace() common.Address { return d.marketplace }

// NFT 构造时传入的会员 NFT 地址
func (d *DAO) NFT() common.Address { return d.nft }

// Run 实现 Contract
func (d *DAO) Run(env *Env, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "":
		return nil, nil
	case contract.MethodNumProposals:
		return []interface{}{big.NewInt(int64(len(d.proposals)))}, nil
	case contract.MethodOwner:
		return []interface{}{d.owner}, nil
	case contract.MethodProposals:
		p := d.proposal(u256(args[0]))
		return []interface{}{new(big.Int).Set(p.tokenID), big.NewInt(p.deadline), new(big.Int).Set(p.yay), new(big.Int).Set(p.nay), p.executed}, nil
	case contract.MethodCreateProposal:
		return d.create(env, u256(args[0]))
	case contract.MethodVoteOnProposal:
		return nil, d.vote(env, u256(args[0]), args[1].(uint8))
	case contract.MethodExecuteProposal:
		return nil, d.execute(env, u256(args[0]))
	case contract.MethodWithdrawEther:
		if env.Caller != d.owner {
			return nil, Revert(ReasonNotOwner)
		}
		return nil, env.Transfer(d.owner, env.Balance())
	default:
		return nil, Revert("unsupported")
	}
}

// proposal 越界时返回零值提案
func (d *DAO) proposal(index *big.Int) *proposal {
	if index.IsInt64() && index.Int64() >= 0 && index.Int64() < int64(len(d.proposals)) {
		return d.proposals[index.Int64()]
	}
	return &proposal{tokenID: new(big.Int), yay: new(big.Int), nay: new(big.Int)}
}

func (d *DAO) memberBalance(env *Env) (*big.Int, error) {
	out, err := env.Invoke(d.nft, contract.MethodBalanceOf, nil, env.Caller)
	if err != nil {
		return nil, err
	}
	balance := u256(out[0])
	if balance.Sign() == 0 {
		return nil, Revert(ReasonNotMember)
	}
	return balance, nil
}

func (d *DAO) create(env *Env, tokenID *big.Int) ([]interface{}, error) {
	if _, err := d.memberBalance(env); err != nil {
		return nil, err
	}
	out, err := env.Invoke(d.marketplace, contract.MethodAvailable, nil, tokenID)
	if err != nil {
		return nil, err
	}
	if available, _ := out[0].(bool); !available {
		return nil, Revert(ReasonNotForSale)
	}

	index := big.NewInt(int64(len(d.proposals)))
	if env.Commit {
		d.proposals = append(d.proposals, &proposal{
			tokenID:  new(big.Int).Set(tokenID),
			deadline: env.Now.Add(ProposalDuration).Unix(),
			yay:      new(big.Int),
			nay:      new(big.Int),
			voters:   make(map[string]bool),
		})
	}
	return []interface{}{index}, nil
}

func (d *DAO) vote(env *Env, index *big.Int, vote uint8) error {
	balance, err := d.memberBalance(env)
	if err != nil {
		return err
	}
	p := d.proposal(index)
	if p.deadline <= env.Now.Unix() {
		return Revert(ReasonDeadlineExceeded)
	}
	if vote > 1 {
		return Revert("invalid vote")
	}

	var fresh []string
	for i := int64(0); i < balance.Int64(); i++ {
		out, err := env.Invoke(d.nft, contract.MethodTokenOfOwnerByIndex, nil, env.Caller, big.NewInt(i))
		if err != nil {
			return err
		}
		key := u256(out[0]).String()
		if !p.voters[key] {
			fresh = append(fresh, key)
		}
	}
	if len(fresh) == 0 {
		return Revert(ReasonAlreadyVoted)
	}

	if env.Commit {
		for _, key := range fresh {
			p.voters[key] = true
		}
		n := big.NewInt(int64(len(fresh)))
		if vote == 0 {
			p.yay.Add(p.yay, n)
		} else {
			p.nay.Add(p.nay, n)
		}
	}
	return nil
}

func (d *DAO) execute(env *Env, index *big.Int) error {
	if _, err := d.memberBalance(env); err != nil {
		return err
	}
	p := d.proposal(index)
	if p.deadline > env.Now.Unix() {
		return Revert(ReasonDeadlineNotReached)
	}
	if p.executed {
		return Revert(ReasonAlreadyExecuted)
	}

	if p.yay.Cmp(p.nay) > 0 {
		out, err := env.Invoke(d.marketplace, contract.MethodGetPrice, nil)
		if err != nil {
			return err
		}
		price := u256(out[0])
		if env.Balance().Cmp(price) < 0 {
			return Revert(ReasonNotEnoughFunds)
		}
		if _, err := env.Invoke(d.marketplace, contract.MethodPurchase, price, p.tokenID); err != nil {
			return err
		}
	}
	if env.Commit {
		p.executed = true
	}
	return nil
}
