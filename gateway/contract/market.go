package contract

import (
	"context"
	"log"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"nft-market-onchain/model"
)

// MarketContract はマーケットプレイスコントラクトとの連携を担当
type MarketContract interface {
	// Address はコントラクトアドレスを返す
	Address() common.Address

	// FetchAvailableItems は購入可能な出品を列挙する
	FetchAvailableItems(ctx context.Context) ([]model.MarketItem, error)

	// FetchSellingItems は呼び出しアカウントが出品中の商品を列挙する
	FetchSellingItems(ctx context.Context, from common.Address) ([]model.MarketItem, error)

	// FetchOwnedItems は呼び出しアカウントが購入済みの商品を列挙する
	FetchOwnedItems(ctx context.Context, from common.Address) ([]model.MarketItem, error)

	// LatestItemByTokenID はトークンIDに対応する最新の出品を取得する
	LatestItemByTokenID(ctx context.Context, tokenId *big.Int) (*model.MarketItem, bool, error)

	// ListingFee は出品手数料を取得する
	ListingFee(ctx context.Context) (*big.Int, error)

	// CreateItem は出品トランザクションを送信する（出品手数料をValueに設定すること）
	CreateItem(opts *bind.TransactOpts, nftContract common.Address, tokenId, price *big.Int) (*types.Transaction, error)

	// CreateSale は購入トランザクションを送信する（価格をValueに設定すること）
	CreateSale(opts *bind.TransactOpts, nftContract common.Address, marketItemId *big.Int) (*types.Transaction, error)

	// CancelItem は出品取り下げトランザクションを送信する
	CancelItem(opts *bind.TransactOpts, nftContract common.Address, marketItemId *big.Int) (*types.Transaction, error)
}

// marketItemTuple はコントラクトのMarketItemタプルのデコード先
type marketItemTuple struct {
	MarketItemId       *big.Int
	NftContractAddress common.Address
	TokenId            *big.Int
	Creator            common.Address
	Seller             common.Address
	Owner              common.Address
	Price              *big.Int
	Sold               bool
	Canceled           bool
}

// MarketGateway はMarketContractの実装
type MarketGateway struct {
	contract *bind.BoundContract
	address  common.Address
	abi      abi.ABI
}

// NewMarketGateway は新しいマーケットプレイスゲートウェイを作成する
func NewMarketGateway(backend bind.ContractBackend, contractAddr string) (*MarketGateway, error) {
	parsedABI, err := abi.JSON(strings.NewReader(MarketplaceABI))
	if err != nil {
		log.Printf("Failed to parse marketplace ABI: %v", err)
		return nil, err
	}

	address := common.HexToAddress(contractAddr)
	if address == (common.Address{}) {
		return nil, &model.ConfigError{Reason: "marketplace contract address is not set or is the zero address"}
	}

	return &MarketGateway{
		contract: bind.NewBoundContract(address, parsedABI, backend, backend, backend),
		address:  address,
		abi:      parsedABI,
	}, nil
}

func (g *MarketGateway) Address() common.Address {
	return g.address
}

// fetchItems はタプル配列を返すview関数を呼び出してモデルに変換する
func (g *MarketGateway) fetchItems(ctx context.Context, from common.Address, method string) ([]model.MarketItem, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx, From: from}
	if err := g.contract.Call(opts, &out, method); err != nil {
		return nil, err
	}

	tuples := *abi.ConvertType(out[0], new([]marketItemTuple)).(*[]marketItemTuple)
	items := make([]model.MarketItem, 0, len(tuples))
	for _, t := range tuples {
		items = append(items, toMarketItem(t))
	}
	return items, nil
}

func toMarketItem(t marketItemTuple) model.MarketItem {
	return model.MarketItem{
		MarketItemId: t.MarketItemId.Uint64(),
		NFTContract:  t.NftContractAddress.Hex(),
		TokenId:      t.TokenId.Uint64(),
		Creator:      t.Creator.Hex(),
		Seller:       t.Seller.Hex(),
		Owner:        t.Owner.Hex(),
		Price:        t.Price,
		Sold:         t.Sold,
		Canceled:     t.Canceled,
	}
}

// FetchAvailableItems は購入可能な出品を列挙する
func (g *MarketGateway) FetchAvailableItems(ctx context.Context) ([]model.MarketItem, error) {
	return g.fetchItems(ctx, common.Address{}, "fetchAvailableMarketItems")
}

// FetchSellingItems は呼び出しアカウントが出品中の商品を列挙する
func (g *MarketGateway) FetchSellingItems(ctx context.Context, from common.Address) ([]model.MarketItem, error) {
	return g.fetchItems(ctx, from, "fetchSellingMarketItems")
}

// FetchOwnedItems は呼び出しアカウントが購入済みの商品を列挙する
func (g *MarketGateway) FetchOwnedItems(ctx context.Context, from common.Address) ([]model.MarketItem, error) {
	return g.fetchItems(ctx, from, "fetchOwnedMarketItems")
}

// LatestItemByTokenID はトークンIDに対応する最新の出品を取得する。
// 2番目の戻り値は出品が存在するかどうか
func (g *MarketGateway) LatestItemByTokenID(ctx context.Context, tokenId *big.Int) (*model.MarketItem, bool, error) {
	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getLatestMarketItemByTokenId", tokenId); err != nil {
		return nil, false, err
	}

	tuple := *abi.ConvertType(out[0], new(marketItemTuple)).(*marketItemTuple)
	found := *abi.ConvertType(out[1], new(bool)).(*bool)
	if !found {
		return nil, false, nil
	}

	item := toMarketItem(tuple)
	return &item, true, nil
}

// ListingFee は出品手数料を取得する
func (g *MarketGateway) ListingFee(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getListingFee"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// CreateItem は出品トランザクションを送信する
func (g *MarketGateway) CreateItem(opts *bind.TransactOpts, nftContract common.Address, tokenId, price *big.Int) (*types.Transaction, error) {
	return g.contract.Transact(opts, "createMarketItem", nftContract, tokenId, price)
}

// CreateSale は購入トランザクションを送信する
func (g *MarketGateway) CreateSale(opts *bind.TransactOpts, nftContract common.Address, marketItemId *big.Int) (*types.Transaction, error) {
	return g.contract.Transact(opts, "createMarketSale", nftContract, marketItemId)
}

// CancelItem は出品取り下げトランザクションを送信する
func (g *MarketGateway) CancelItem(opts *bind.TransactOpts, nftContract common.Address, marketItemId *big.Int) (*types.Transaction, error) {
	return g.contract.Transact(opts, "cancelMarketItem", nftContract, marketItemId)
}
