package contract

import (
	"context"
	"errors"
	"log"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"nft-market-onchain/model"
)

// NFTContract はNFTコレクションコントラクトとの連携を担当
type NFTContract interface {
	// Address はコントラクトアドレスを返す
	Address() common.Address

	// MintToken はトークンURIを指定してmintトランザクションを送信する
	MintToken(opts *bind.TransactOpts, tokenURI string) (*types.Transaction, error)

	// TokenURI はトークンのメタデータURIを取得する
	TokenURI(ctx context.Context, tokenId *big.Int) (string, error)

	// OwnerOf はトークンの所有者を取得する
	OwnerOf(ctx context.Context, tokenId *big.Int) (common.Address, error)

	// Approve はトークンの操作権限を委譲する
	Approve(opts *bind.TransactOpts, to common.Address, tokenId *big.Int) (*types.Transaction, error)

	// TokensOwnedBy は指定アカウントが所有するトークンIDを列挙する
	TokensOwnedBy(ctx context.Context, owner common.Address) ([]*big.Int, error)

	// TokenCreator はトークンの作成者を取得する
	TokenCreator(ctx context.Context, tokenId *big.Int) (common.Address, error)

	// MintedTokenID はmintトランザクションのレシートから採番されたトークンIDを抽出する
	MintedTokenID(receipt *types.Receipt) (uint64, error)
}

// NFTGateway はNFTContractの実装
type NFTGateway struct {
	contract *bind.BoundContract
	address  common.Address
	abi      abi.ABI
}

// NewNFTGateway は新しいNFTコントラクトゲートウェイを作成する
func NewNFTGateway(backend bind.ContractBackend, contractAddr string) (*NFTGateway, error) {
	parsedABI, err := abi.JSON(strings.NewReader(NFTCollectionABI))
	if err != nil {
		log.Printf("Failed to parse NFT collection ABI: %v", err)
		return nil, err
	}

	address := common.HexToAddress(contractAddr)
	if address == (common.Address{}) {
		return nil, &model.ConfigError{Reason: "NFT contract address is not set or is the zero address"}
	}

	return &NFTGateway{
		contract: bind.NewBoundContract(address, parsedABI, backend, backend, backend),
		address:  address,
		abi:      parsedABI,
	}, nil
}

func (g *NFTGateway) Address() common.Address {
	return g.address
}

// MintToken はトークンURIを指定してmintトランザクションを送信する
func (g *NFTGateway) MintToken(opts *bind.TransactOpts, tokenURI string) (*types.Transaction, error) {
	return g.contract.Transact(opts, "mintToken", tokenURI)
}

// TokenURI はトークンのメタデータURIを取得する
func (g *NFTGateway) TokenURI(ctx context.Context, tokenId *big.Int) (string, error) {
	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, "tokenURI", tokenId); err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// OwnerOf はトークンの所有者を取得する
func (g *NFTGateway) OwnerOf(ctx context.Context, tokenId *big.Int) (common.Address, error) {
	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, "ownerOf", tokenId); err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// Approve はトークンの操作権限を委譲する
func (g *NFTGateway) Approve(opts *bind.TransactOpts, to common.Address, tokenId *big.Int) (*types.Transaction, error) {
	return g.contract.Transact(opts, "approve", to, tokenId)
}

// TokensOwnedBy は指定アカウントが所有するトークンIDを列挙する。
// コントラクト側はmsg.senderで判定するためFromを指定して呼び出す
func (g *NFTGateway) TokensOwnedBy(ctx context.Context, owner common.Address) ([]*big.Int, error) {
	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx, From: owner}, &out, "getTokensOwnedByMe"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int), nil
}

// TokenCreator はトークンの作成者を取得する
func (g *NFTGateway) TokenCreator(ctx context.Context, tokenId *big.Int) (common.Address, error) {
	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getTokenCreatorById", tokenId); err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// MintedTokenID はレシートのTransferイベント（ゼロアドレスからの転送）から
// 採番されたトークンIDを抽出する
func (g *NFTGateway) MintedTokenID(receipt *types.Receipt) (uint64, error) {
	transferSig := g.abi.Events["Transfer"].ID

	for _, vLog := range receipt.Logs {
		if vLog.Address != g.address {
			continue
		}
		if len(vLog.Topics) < 4 || vLog.Topics[0] != transferSig {
			continue
		}
		from := common.HexToAddress(vLog.Topics[1].Hex())
		if from != (common.Address{}) {
			continue
		}
		return new(big.Int).SetBytes(vLog.Topics[3].Bytes()).Uint64(), nil
	}

	return 0, errors.New("no mint Transfer event found in receipt")
}
